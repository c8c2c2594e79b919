// Package archive bundles staged outputs into a single zip deliverable.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/petii/mp3-magic-machine/internal/staging"
)

var (
	// ErrIO marks a missing input or a failed archive write
	ErrIO = errors.New("archive write failed")

	// ErrDuplicateEntry is returned when two inputs share an entry name
	ErrDuplicateEntry = errors.New("duplicate archive entry")
)

// Key returns the dated object key of an archive: <prefix>/<YYYY>/<MM>-<DD>.zip
func Key(prefix string, t time.Time) string {
	t = t.UTC()
	return path.Join(prefix, t.Format("2006"), t.Format("01-02")+".zip")
}

// FileName returns the local file name of an archive: <YYYY>-<MM>-<DD>.zip
func FileName(t time.Time) string {
	return t.UTC().Format("2006-01-02") + ".zip"
}

// Assemble writes files into a zip archive at dest, one Deflate entry per file
// named after its base name, in input order. The archive is built in a
// temporary file next to dest and only renamed into place once complete.
func Assemble(files []staging.File, dest string) error {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		name := entryName(f)
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
		}
		seen[name] = struct{}{}
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create archive directory: %w", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp archive: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()

	if err := writeEntries(tmp, files); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close archive: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to move archive into place: %w", ErrIO, err)
	}

	return nil
}

func writeEntries(w io.Writer, files []staging.File) error {
	zw := zip.NewWriter(w)

	for _, f := range files {
		if err := addEntry(zw, f); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: failed to finalize archive: %w", ErrIO, err)
	}
	return nil
}

func addEntry(zw *zip.Writer, f staging.File) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrIO, f.Path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %w", ErrIO, f.Path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: failed to build header for %s: %w", ErrIO, f.Path, err)
	}
	header.Name = entryName(f)
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: failed to create entry %s: %w", ErrIO, header.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: failed to copy %s: %w", ErrIO, f.Path, err)
	}

	return nil
}

func entryName(f staging.File) string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.Path)
}
