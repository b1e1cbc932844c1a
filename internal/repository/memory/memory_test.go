package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

func TestLoadEmptyReturnsNil(t *testing.T) {
	doc, err := New().Load(context.Background())
	if err != nil || doc != nil {
		t.Fatalf("expected nil document, got %+v err=%v", doc, err)
	}
}

func TestSaveBumpsRevisionAndIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	repo := New()
	doc := &domain.Document{Environments: []domain.Environment{{ID: "env-1", Name: "QA", Port: 4005}}}
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", doc.Revision)
	}
	doc.Environments[0].Name = "mutated"

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Environments[0].Name != "QA" {
		t.Fatalf("stored copy was mutated: %q", loaded.Environments[0].Name)
	}
}

func TestSaveRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	repo := New()
	if err := repo.Save(ctx, &domain.Document{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	first, _ := repo.Load(ctx)
	second, _ := repo.Load(ctx)

	first.Profiles = append(first.Profiles, domain.Profile{ID: "p1"})
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	second.Profiles = append(second.Profiles, domain.Profile{ID: "p2"})
	if err := repo.Save(ctx, second); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale writer, got %v", err)
	}
}
