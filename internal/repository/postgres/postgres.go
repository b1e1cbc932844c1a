package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

const defaultDocumentKey = "default"

// Repository stores the administration document as one jsonb row.
type Repository struct {
	pool *pgxpool.Pool
	key  string
}

var _ repository.DocumentRepository = (*Repository)(nil)

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, key: defaultDocumentKey}
}

// Load fetches the document row.
func (r *Repository) Load(ctx context.Context) (*domain.Document, error) {
	const query = `SELECT documento, revisao FROM documentos WHERE chave = $1`
	var (
		payload  []byte
		revision int64
	)
	if err := r.pool.QueryRow(ctx, query, r.key).Scan(&payload, &revision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load document: %v", repository.ErrStorage, err)
	}
	var doc domain.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", repository.ErrStorage, err)
	}
	doc.Revision = revision
	return &doc, nil
}

// Save writes the document guarded by its revision column.
func (r *Repository) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", repository.ErrInvalidArgument)
	}
	next := *doc
	next.Revision = doc.Revision + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", repository.ErrStorage, err)
	}

	var query string
	args := []any{r.key, payload, next.Revision}
	if doc.Revision == 0 {
		query = `INSERT INTO documentos (chave, documento, revisao, atualizado_em)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (chave) DO NOTHING`
	} else {
		query = `UPDATE documentos SET documento = $2, revisao = $3, atualizado_em = NOW()
			WHERE chave = $1 AND revisao = $4`
		args = append(args, doc.Revision)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: save document: %v", repository.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document revision %d is stale", repository.ErrConflict, doc.Revision)
	}
	doc.Revision = next.Revision
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
