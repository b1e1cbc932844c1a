package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/jsonfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/memory"
)

func TestOpenFileSchemes(t *testing.T) {
	dir := t.TempDir()
	for _, dsn := range []string{"file://" + filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")} {
		repo, err := Open(context.Background(), dsn, Options{})
		if err != nil {
			t.Fatalf("open %s: %v", dsn, err)
		}
		fileRepo, ok := repo.(*jsonfile.Repository)
		if !ok {
			t.Fatalf("expected json file repository for %s, got %T", dsn, repo)
		}
		if filepath.Dir(fileRepo.Path()) != dir {
			t.Fatalf("unexpected path %q for %s", fileRepo.Path(), dsn)
		}
	}
}

func TestOpenMemory(t *testing.T) {
	repo, err := Open(context.Background(), "memory://", Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := repo.(*memory.Repository); !ok {
		t.Fatalf("expected memory repository, got %T", repo)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "mysql://x", Options{}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
