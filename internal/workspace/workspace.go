package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Manager owns environment directories under a common base path. Directory
// names follow the "<prefix>-<port>-<suffix>" pattern.
type Manager struct {
	root   string
	prefix string
	suffix string
}

// New validates the layout and ensures the base path exists.
func New(root, prefix, suffix string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if prefix == "" || suffix == "" {
		return nil, fmt.Errorf("workspace directory prefix and suffix are required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: filepath.Clean(root), prefix: prefix, suffix: suffix}, nil
}

// Root returns the base path.
func (m *Manager) Root() string {
	return m.root
}

// DirName derives the directory name for a port.
func (m *Manager) DirName(port int) string {
	return fmt.Sprintf("%s-%d-%s", m.prefix, port, m.suffix)
}

// ParseDirName extracts the port from a directory name, reporting whether the
// name follows the layout.
func (m *Manager) ParseDirName(name string) (int, bool) {
	head, tail := m.prefix+"-", "-"+m.suffix
	if !strings.HasPrefix(name, head) || !strings.HasSuffix(name, tail) || len(name) <= len(head)+len(tail) {
		return 0, false
	}
	digits := name[len(head) : len(name)-len(tail)]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	port, err := strconv.Atoi(digits)
	if err != nil || port <= 0 {
		return 0, false
	}
	return port, true
}

// Path joins a directory name onto the base path.
func (m *Manager) Path(dirName string) string {
	return filepath.Join(m.root, dirName)
}

// PortPath is the directory for the environment bound to port.
func (m *Manager) PortPath(port int) string {
	return m.Path(m.DirName(port))
}

// Exists reports whether the environment directory is present.
func (m *Manager) Exists(dirName string) bool {
	info, err := os.Stat(m.Path(dirName))
	return err == nil && info.IsDir()
}

// Prepare creates the directory for dirName if missing and returns its path.
func (m *Manager) Prepare(dirName string) (string, error) {
	if dirName == "" {
		return "", fmt.Errorf("workspace identifier cannot be empty")
	}
	dir := m.Path(dirName)
	if err := m.inside(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// Cleanup removes a directory below the base path.
func (m *Manager) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if err := m.inside(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// CleanupByName removes the environment directory called dirName. A missing
// directory is reported as fs.ErrNotExist.
func (m *Manager) CleanupByName(dirName string) error {
	if dirName == "" {
		return fmt.Errorf("workspace identifier cannot be empty")
	}
	path := m.Path(dirName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return m.Cleanup(path)
}

func (m *Manager) inside(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to touch path outside workspace root: %s", path)
	}
	return nil
}
