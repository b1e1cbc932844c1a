// Package detector scans the base path for environment directories.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/workspace"
)

// CredentialFile is the environment-level credential file name.
const CredentialFile = ".env"

// Detector finds environments laid out under the workspace root.
type Detector struct {
	layout    *workspace.Manager
	adminPort int
	logger    *slog.Logger
}

// New constructs a Detector. Directories bound to adminPort are ignored.
func New(layout *workspace.Manager, adminPort int, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{layout: layout, adminPort: adminPort, logger: logger.With("component", "detector")}
}

// DefaultName is the display name given to an environment found on disk.
func DefaultName(port int) string {
	return fmt.Sprintf("Ambiente %d", port)
}

// Detect lists the environments present on disk, ordered by port. Candidates
// that cannot be inspected are logged and skipped; a failed scan yields an
// empty list.
func (d *Detector) Detect(ctx context.Context) []domain.DetectedEnvironment {
	entries, err := os.ReadDir(d.layout.Root())
	if err != nil {
		d.logger.ErrorContext(ctx, "scan base path", "path", d.layout.Root(), "error", err)
		return []domain.DetectedEnvironment{}
	}

	detected := make([]domain.DetectedEnvironment, 0, len(entries))
	for _, entry := range entries {
		port, ok := d.layout.ParseDirName(entry.Name())
		if !ok || port == d.adminPort {
			continue
		}
		path := d.layout.Path(entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			d.logger.WarnContext(ctx, "skip environment candidate", "directory", entry.Name(), "error", err)
			continue
		}
		if !info.IsDir() {
			continue
		}
		integrations, err := d.integrationsIn(path)
		if err != nil {
			d.logger.WarnContext(ctx, "skip environment candidate", "directory", entry.Name(), "error", err)
			continue
		}
		hasEnv, err := exists(filepath.Join(path, CredentialFile))
		if err != nil {
			d.logger.WarnContext(ctx, "skip environment candidate", "directory", entry.Name(), "error", err)
			continue
		}
		detected = append(detected, domain.DetectedEnvironment{
			Name:              DefaultName(port),
			Port:              port,
			Directory:         entry.Name(),
			Integrations:      integrations,
			HasCredentialFile: hasEnv,
		})
	}

	sort.Slice(detected, func(i, j int) bool { return detected[i].Port < detected[j].Port })
	d.logger.DebugContext(ctx, "environments detected", "count", len(detected))
	return detected
}

// Available lists the catalog integrations whose source directory exists in
// the environment bound to port.
func (d *Detector) Available(ctx context.Context, port int) []domain.Integration {
	path := d.layout.PortPath(port)
	available := []domain.Integration{}
	for _, entry := range catalog.Entries() {
		ok, err := exists(filepath.Join(path, entry.Directory))
		if err != nil {
			d.logger.WarnContext(ctx, "inspect integration directory", "integration", entry.ID, "port", port, "error", err)
			continue
		}
		if ok {
			available = append(available, domain.Integration{ID: entry.ID, Name: entry.Name, Directory: entry.Directory, Active: true})
		}
	}
	return available
}

func (d *Detector) integrationsIn(path string) ([]string, error) {
	found := []string{}
	for _, entry := range catalog.Entries() {
		ok, err := exists(filepath.Join(path, entry.Directory))
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, entry.ID)
		}
	}
	return found, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
