package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		base     string
		role     Role
		expected string
	}{
		{"take1", RoleLeft, "take1-left.mp3"},
		{"take1", RoleRight, "take1-right.mp3"},
		{"take1", RoleJoint, "take1.mp3"},
		{"take1", RoleMono, "take1.mp3"},
	}

	for _, tt := range tests {
		if got := OutputName(tt.base, tt.role); got != tt.expected {
			t.Errorf("OutputName(%q, %s): expected %q, got %q", tt.base, tt.role, tt.expected, got)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"recording.wav", "recording"},
		{"uploads/2024/session.wav", "session"},
		{"uploads/session.final.wav", "session.final"},
		{"noext", "noext"},
		{"dir/.wav", ".wav"},
		{"dir/sub/", "sub"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := BaseName(tt.key); got != tt.expected {
			t.Errorf("BaseName(%q): expected %q, got %q", tt.key, tt.expected, got)
		}
	}
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "root")
	w := NewWriter(dir)

	if w.Dir() != dir {
		t.Errorf("Expected dir %s, got %s", dir, w.Dir())
	}

	f, err := w.Write("take1-left.mp3", RoleLeft, []byte("frames"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if f.Path != filepath.Join(dir, "take1-left.mp3") {
		t.Errorf("Expected path under staging dir, got %s", f.Path)
	}
	if f.Name != "take1-left.mp3" || f.Role != RoleLeft || f.Size != 6 {
		t.Errorf("Unexpected file record: %+v", f)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "frames" {
		t.Errorf("Expected 'frames', got %q", data)
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected exactly one staged file, got %d", len(entries))
	}
}

func TestWriterOverwrite(t *testing.T) {
	w := NewWriter(t.TempDir())

	if _, err := w.Write("a.mp3", RoleJoint, []byte("first")); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	f, err := w.Write("a.mp3", RoleJoint, []byte("second"))
	if err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	data, _ := os.ReadFile(f.Path)
	if string(data) != "second" {
		t.Errorf("Expected rewritten content, got %q", data)
	}
}

func TestWriterRejectsPathNames(t *testing.T) {
	w := NewWriter(t.TempDir())

	for _, name := range []string{"", "../escape.mp3", "sub/a.mp3"} {
		if _, err := w.Write(name, RoleJoint, []byte("x")); !errors.Is(err, ErrIO) {
			t.Errorf("Write(%q): expected ErrIO, got %v", name, err)
		}
	}
}

func TestWriterUnwritableDirectory(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// A regular file where a directory is expected
	w := NewWriter(filepath.Join(blocker, "staging"))
	if _, err := w.Write("a.mp3", RoleJoint, []byte("x")); !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
}

func TestWriterRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inv")
	w := NewWriter(dir)

	if _, err := w.Write("a.mp3", RoleJoint, []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Expected staging dir to be gone, got %v", err)
	}
}
