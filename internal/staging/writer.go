// Package staging persists encoded outputs to local scratch storage under
// deterministic names.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrIO marks a staging write failure
var ErrIO = errors.New("staging write failed")

// Extension of every staged output
const Extension = ".mp3"

// Role identifies which logical output a staged file holds
type Role string

const (
	RoleLeft  Role = "left"
	RoleRight Role = "right"
	RoleJoint Role = "joint"
	RoleMono  Role = "mono"
)

// Suffix returns the name suffix appended to the base name for the role.
// Joint and mono outputs carry the bare base name.
func (r Role) Suffix() string {
	switch r {
	case RoleLeft:
		return "-left"
	case RoleRight:
		return "-right"
	default:
		return ""
	}
}

// OutputName builds the staged file name for a base name and role
func OutputName(base string, role Role) string {
	return base + role.Suffix() + Extension
}

// BaseName returns the last segment of an object key without its extension.
// A key made only of an extension keeps its full segment.
func BaseName(key string) string {
	name := path.Base(strings.TrimRight(key, "/"))
	if name == "." || name == "/" {
		return ""
	}
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		return name
	}
	return base
}

// File is one staged output
type File struct {
	Path string
	Name string
	Role Role
	Size int64
}

// Writer stages files below a single directory
type Writer struct {
	dir string
}

// NewWriter returns a writer rooted at dir. The directory is created lazily.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the staging directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores data under name. The content is written to a temporary file
// first and renamed into place, so a reader never sees a partial output.
// Writing the same name twice replaces the earlier content.
func (w *Writer) Write(name string, role Role, data []byte) (File, error) {
	if name == "" || name != filepath.Base(name) {
		return File{}, fmt.Errorf("%w: invalid file name %q", ErrIO, name)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return File{}, fmt.Errorf("%w: failed to create staging directory: %w", ErrIO, err)
	}

	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return File{}, fmt.Errorf("%w: failed to create temp file: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return File{}, fmt.Errorf("%w: failed to write %s: %w", ErrIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return File{}, fmt.Errorf("%w: failed to close %s: %w", ErrIO, name, err)
	}

	dest := filepath.Join(w.dir, name)
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return File{}, fmt.Errorf("%w: failed to move %s into place: %w", ErrIO, name, err)
	}

	return File{
		Path: dest,
		Name: name,
		Role: role,
		Size: int64(len(data)),
	}, nil
}

// Remove deletes the staging directory and everything below it
func (w *Writer) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %w", ErrIO, w.dir, err)
	}
	return nil
}
