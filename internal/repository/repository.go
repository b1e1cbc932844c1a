package repository

import (
	"context"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
)

// DocumentRepository persists the whole administration document.
//
// Load returns the stored document, or a nil document when nothing was saved
// yet. Save writes doc only when the stored revision still equals
// doc.Revision and then bumps doc.Revision; otherwise it returns ErrConflict.
// This is the single place where concurrent read-modify-write races surface.
type DocumentRepository interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// Closer is implemented by repositories holding external connections.
type Closer interface {
	Close() error
}
