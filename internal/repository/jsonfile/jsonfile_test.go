package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dados.json")
	repo, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	doc, err := repo.Load(ctx)
	if err != nil || doc != nil {
		t.Fatalf("expected missing file to load as nil, got %+v err=%v", doc, err)
	}

	doc = &domain.Document{
		SchemaVersion: domain.SchemaVersion,
		Environments:  []domain.Environment{{ID: "env-1", Name: "QA", Port: 5005, Integrations: []string{"alpha"}}},
	}
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file should be renamed away, stat err=%v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Revision != 1 || len(loaded.Environments) != 1 || loaded.Environments[0].Port != 5005 {
		t.Fatalf("unexpected document: %+v", loaded)
	}
}

func TestSaveRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	repo, err := New(filepath.Join(t.TempDir(), "dados.json"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := repo.Save(ctx, &domain.Document{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stale := &domain.Document{Revision: 0}
	if err := repo.Save(ctx, stale); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLoadCorruptFileIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo, _ := New(path)
	if _, err := repo.Load(context.Background()); !errors.Is(err, repository.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
