package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDirNameRoundTrip(t *testing.T) {
	m, err := New(t.TempDir(), "ambiente", "app")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	name := m.DirName(5005)
	if name != "ambiente-5005-app" {
		t.Fatalf("unexpected dir name %q", name)
	}
	port, ok := m.ParseDirName(name)
	if !ok || port != 5005 {
		t.Fatalf("expected port 5005, got %d ok=%v", port, ok)
	}
}

func TestParseDirNameRejectsForeignNames(t *testing.T) {
	m, err := New(t.TempDir(), "ambiente", "app")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, name := range []string{"ambiente--app", "ambiente-abc-app", "ambiente-0-app", "ambiente-12-api", "outro-12-app", "ambiente-+1-app", "ambiente-12-app.bak"} {
		if port, ok := m.ParseDirName(name); ok {
			t.Fatalf("expected %q to be rejected, got port %d", name, port)
		}
	}
}

func TestCleanupRefusesPathsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	m, err := New(filepath.Join(root, "base"), "ambiente", "app")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	outside := filepath.Join(root, "keep")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := m.Cleanup(outside); err == nil {
		t.Fatalf("expected refusal for path outside root")
	}
	if err := m.Cleanup(m.Root()); err == nil {
		t.Fatalf("expected refusal for the root itself")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("outside directory removed: %v", err)
	}
}

func TestPrepareAndCleanupByName(t *testing.T) {
	m, err := New(t.TempDir(), "ambiente", "app")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	name := m.DirName(4100)
	dir, err := m.Prepare(name)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !m.Exists(name) || dir != m.PortPath(4100) {
		t.Fatalf("expected %s to exist", dir)
	}
	if err := m.CleanupByName(name); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if m.Exists(name) {
		t.Fatalf("expected directory removed")
	}
	if err := m.CleanupByName(name); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist on second cleanup, got %v", err)
	}
}
