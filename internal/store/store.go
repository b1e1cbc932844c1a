// Package store implements the administration document operations on top of
// a repository.DocumentRepository.
//
// Every mutation loads the whole document, applies the change in memory and
// saves it back. Concurrent writers are detected by the repository revision
// check and the losing writer receives repository.ErrConflict; nothing is
// retried here.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
)

// Store exposes the persisted administration state.
type Store struct {
	repo   repository.DocumentRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Store.
func New(repo repository.DocumentRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, logger: logger.With("component", "store"), now: time.Now}
}

// Get returns the current document. A store that was never written returns a
// fresh document holding the integration catalog.
func (s *Store) Get(ctx context.Context) (*domain.Document, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &domain.Document{}
	}
	normalize(doc)
	return doc, nil
}

// Update applies transform to the current document and saves the result. When
// transform fails nothing is written.
func (s *Store) Update(ctx context.Context, transform func(doc *domain.Document) error) (*domain.Document, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := transform(doc); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetLastSync records the time of the latest reconcile or bulk sync.
func (s *Store) SetLastSync(ctx context.Context, at time.Time) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		at = at.UTC()
		doc.LastSync = &at
		return nil
	})
	return err
}

// Integrations returns the persisted integration catalog.
func (s *Store) Integrations(ctx context.Context) ([]domain.Integration, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Integrations, nil
}

func normalize(doc *domain.Document) {
	if doc.SchemaVersion < domain.SchemaVersion {
		doc.SchemaVersion = domain.SchemaVersion
	}
	if doc.Environments == nil {
		doc.Environments = []domain.Environment{}
	}
	if doc.Profiles == nil {
		doc.Profiles = []domain.Profile{}
	}
	if doc.Logins == nil {
		doc.Logins = []domain.Login{}
	}
	doc.Integrations = catalog.Integrations()
	for i := range doc.Environments {
		if doc.Environments[i].Integrations == nil {
			doc.Environments[i].Integrations = []string{}
		}
	}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func newID() string {
	return uuid.NewString()
}

func hashSecret(plain string) (string, error) {
	hash, err := crypto.HashPassword(plain)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", repository.ErrInvalidArgument, field)
	}
	return nil
}
