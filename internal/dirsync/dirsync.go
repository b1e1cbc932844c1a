// Package dirsync mirrors integration source trees into environment
// directories.
package dirsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// CredentialFile is the credential file location inside an integration tree.
const CredentialFile = "config/credenciais.env"

// excludedNames are skipped at every depth. Dot entries are skipped as well.
var excludedNames = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"logs":         {},
	"log":          {},
	".git":         {},
	".svn":         {},
	".hg":          {},
}

// Excluded reports whether an entry name is never copied.
func Excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := excludedNames[name]
	return ok
}

// Options controls a single copy.
type Options struct {
	// Integration, when set, filters the copied credential file down to that
	// integration's keys.
	Integration string
	// Overwrite copies into an existing destination instead of returning early.
	Overwrite bool
}

// Report summarizes a copy.
type Report struct {
	Source      string   `json:"origem"`
	Destination string   `json:"destino"`
	NoOp        bool     `json:"semAlteracao"`
	Files       int      `json:"arquivos"`
	Directories int      `json:"diretorios"`
	Skipped     []string `json:"ignorados,omitempty"`
	Filtered    bool     `json:"credenciaisFiltradas"`
	Errors      []string `json:"erros,omitempty"`
}

// Synchronizer copies directory trees.
type Synchronizer struct {
	logger *slog.Logger
}

// New constructs a Synchronizer.
func New(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger.With("component", "dirsync")}
}

// Copy mirrors src into dst. Individual file failures do not stop the walk;
// they are collected in the report and returned joined under ErrFilesystem.
// The destination is left partially copied on error or cancellation.
func (s *Synchronizer) Copy(ctx context.Context, src, dst string, opts Options) (Report, error) {
	report := Report{Source: src, Destination: dst}
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, fmt.Errorf("%w: source %s", repository.ErrNotFound, src)
		}
		return report, fmt.Errorf("%w: stat source %s: %v", repository.ErrFilesystem, src, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%w: source %s is not a directory", repository.ErrFilesystem, src)
	}
	if _, err := os.Stat(dst); err == nil && !opts.Overwrite {
		report.NoOp = true
		return report, nil
	}

	var failures []error
	fail := func(path string, err error) {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
		failures = append(failures, fmt.Errorf("%s: %w", path, err))
	}

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			fail(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			fail(path, relErr)
			return nil
		}
		if rel != "." && Excluded(d.Name()) {
			report.Skipped = append(report.Skipped, filepath.ToSlash(rel))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, dirMode(d)); err != nil {
				fail(path, err)
				return filepath.SkipDir
			}
			report.Directories++
		case d.Type()&fs.ModeSymlink != 0:
			if err := copySymlink(path, target); err != nil {
				fail(path, err)
				return nil
			}
			report.Files++
		case d.Type().IsRegular():
			if err := copyFile(path, target); err != nil {
				fail(path, err)
				return nil
			}
			report.Files++
		default:
			report.Skipped = append(report.Skipped, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		fail(src, walkErr)
	}

	if opts.Integration != "" {
		filtered, err := s.filterCredentials(dst, opts.Integration)
		if err != nil {
			fail(filepath.Join(dst, CredentialFile), err)
		}
		report.Filtered = filtered
	}

	s.logger.Info("directory copied", "source", src, "destination", dst, "files", report.Files, "skipped", len(report.Skipped), "errors", len(report.Errors))
	if len(failures) > 0 {
		return report, fmt.Errorf("%w: copy %s: %w", repository.ErrFilesystem, src, errors.Join(failures...))
	}
	return report, nil
}

func (s *Synchronizer) filterCredentials(root, integrationID string) (bool, error) {
	path := filepath.Join(root, filepath.FromSlash(CredentialFile))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	filtered, err := envfile.Filter(string(data), integrationID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := WriteFileAtomic(path, []byte(filtered), info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

func dirMode(d fs.DirEntry) fs.FileMode {
	if info, err := d.Info(); err == nil {
		return info.Mode().Perm() | 0o700
	}
	return 0o755
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return writeAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, dst)
}

// WriteFileAtomic replaces path with data through a temporary sibling file.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	return writeAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeAtomic(path string, mode fs.FileMode, fill func(io.Writer) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if err := fill(tmpFile); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
