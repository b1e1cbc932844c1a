package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// Repository keeps the document in process memory as a JSON snapshot so that
// callers never share mutable state with the stored copy.
type Repository struct {
	mu       sync.Mutex
	snapshot []byte
	revision int64
}

var _ repository.DocumentRepository = (*Repository)(nil)

// New constructs an empty in-memory repository.
func New() *Repository {
	return &Repository{}
}

// Load returns a deep copy of the stored document.
func (r *Repository) Load(ctx context.Context) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		return nil, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(r.snapshot, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", repository.ErrStorage, err)
	}
	return &doc, nil
}

// Save stores doc if its revision matches the stored one.
func (r *Repository) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", repository.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.Revision != r.revision {
		return fmt.Errorf("%w: document revision %d is stale (current %d)", repository.ErrConflict, doc.Revision, r.revision)
	}
	next := *doc
	next.Revision = r.revision + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", repository.ErrStorage, err)
	}
	r.snapshot = data
	r.revision = next.Revision
	doc.Revision = next.Revision
	return nil
}
