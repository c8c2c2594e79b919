package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petii/mp3-magic-machine/internal/staging"
)

func stage(t *testing.T, dir string, name string, data []byte) staging.File {
	t.Helper()
	f, err := staging.NewWriter(dir).Write(name, staging.RoleJoint, data)
	if err != nil {
		t.Fatalf("Staging %s failed: %v", name, err)
	}
	return f
}

func TestKey(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 23, 30, 0, 0, time.UTC)

	if got := Key("mp3-magic-machine/archive", ts); got != "mp3-magic-machine/archive/2024/03-07.zip" {
		t.Errorf("Expected dated key, got %s", got)
	}

	// Non-UTC times are normalized before formatting
	east := time.FixedZone("UTC+2", 2*3600)
	if got := Key("a", time.Date(2024, time.March, 8, 1, 0, 0, 0, east)); got != "a/2024/03-07.zip" {
		t.Errorf("Expected UTC date, got %s", got)
	}

	if got := FileName(ts); got != "2024-03-07.zip" {
		t.Errorf("Expected 2024-03-07.zip, got %s", got)
	}
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	files := []staging.File{
		stage(t, filepath.Join(dir, "0"), "a-left.mp3", []byte("left frames")),
		stage(t, filepath.Join(dir, "0"), "a-right.mp3", []byte("right frames")),
		stage(t, filepath.Join(dir, "1"), "b.mp3", bytes.Repeat([]byte{0x55}, 64*1024)),
	}

	dest := filepath.Join(dir, "out", "2024-03-07.zip")
	if err := Assemble(files, dest); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != len(files) {
		t.Fatalf("Expected %d entries, got %d", len(files), len(zr.File))
	}

	for i, entry := range zr.File {
		if entry.Name != files[i].Name {
			t.Errorf("Entry %d: expected %s, got %s", i, files[i].Name, entry.Name)
		}
		if entry.Method != zip.Deflate {
			t.Errorf("Entry %s: expected Deflate, got method %d", entry.Name, entry.Method)
		}

		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", entry.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", entry.Name, err)
		}

		want, _ := os.ReadFile(files[i].Path)
		if !bytes.Equal(got, want) {
			t.Errorf("Entry %s: content mismatch", entry.Name)
		}
	}

	// Only the final archive remains in the destination directory
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("Expected only the archive in the output dir, got %d entries", len(entries))
	}
}

func TestAssembleEmpty(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.zip")
	if err := Assemble(nil, dest); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 0 {
		t.Errorf("Expected no entries, got %d", len(zr.File))
	}
}

func TestAssembleDuplicateEntry(t *testing.T) {
	dir := t.TempDir()
	files := []staging.File{
		stage(t, filepath.Join(dir, "0"), "take.mp3", []byte("one")),
		stage(t, filepath.Join(dir, "1"), "take.mp3", []byte("two")),
	}

	dest := filepath.Join(dir, "out.zip")
	err := Assemble(files, dest)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("Expected no archive after a duplicate, got %v", statErr)
	}
}

func TestAssembleMissingInput(t *testing.T) {
	dir := t.TempDir()
	files := []staging.File{
		stage(t, dir, "present.mp3", []byte("data")),
		{Path: filepath.Join(dir, "missing.mp3"), Name: "missing.mp3"},
	}

	dest := filepath.Join(dir, "out", "archive.zip")
	err := Assemble(files, dest)
	if !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the not-exist cause to be preserved, got %v", err)
	}

	// No partial archive and no temp file
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Errorf("Expected an empty output dir, got %d entries", len(entries))
	}
}

func TestAssembleReplacesExistingArchive(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "day.zip")
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	files := []staging.File{stage(t, filepath.Join(dir, "s"), "x.mp3", []byte("x"))}
	if err := Assemble(files, dest); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("Expected a valid archive, got %v", err)
	}
	zr.Close()
}
