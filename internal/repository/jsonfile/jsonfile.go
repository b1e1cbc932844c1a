package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// Repository stores the document as one JSON file, replaced atomically on save.
type Repository struct {
	path string
	mu   sync.Mutex
}

var _ repository.DocumentRepository = (*Repository)(nil)

// New returns a repository backed by the file at path.
func New(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: document path required", repository.ErrInvalidArgument)
	}
	return &Repository{path: path}, nil
}

// Path returns the backing file location.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the document; a missing file yields a nil document.
func (r *Repository) Load(ctx context.Context) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Save writes doc when the revision on disk still matches doc.Revision.
func (r *Repository) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", repository.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read()
	if err != nil {
		return err
	}
	var stored int64
	if current != nil {
		stored = current.Revision
	}
	if doc.Revision != stored {
		return fmt.Errorf("%w: document revision %d is stale (current %d)", repository.ErrConflict, doc.Revision, stored)
	}

	next := *doc
	next.Revision = stored + 1
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", repository.ErrStorage, err)
	}
	dir := filepath.Dir(r.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create document dir: %v", repository.ErrStorage, err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write document: %v", repository.ErrStorage, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: replace document: %v", repository.ErrStorage, err)
	}
	doc.Revision = next.Revision
	return nil
}

func (r *Repository) read() (*domain.Document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read document: %v", repository.ErrStorage, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", repository.ErrStorage, err)
	}
	return &doc, nil
}
