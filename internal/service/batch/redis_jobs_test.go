package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

func newRedisStore(t *testing.T) (*RedisJobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisJobStoreWithClient(client, time.Hour), mr
}

func TestRedisJobStoreLifecycle(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	job := domain.BatchJob{ID: "job-1", Status: domain.BatchProcessing, Total: 2, Results: []domain.BatchResult{}}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, job); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if ttl := mr.TTL("sistema-admin:lote:job-1"); ttl != time.Hour {
		t.Fatalf("expected ttl of one hour, got %v", ttl)
	}

	updated, err := store.UpdateProgress(ctx, "job-1", Progress{Results: []domain.BatchResult{{Index: 0, Success: true}, {Index: 1}}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Processed != 2 || updated.Succeeded != 1 || updated.Failed != 1 {
		t.Fatalf("unexpected counters %+v", updated)
	}
	if _, err := store.UpdateProgress(ctx, "job-1", Progress{Done: true}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.BatchDone || got.FinishedAt == nil || len(got.Results) != 2 {
		t.Fatalf("unexpected stored job %+v", got)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedisJobStoreConcurrentProgress(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, domain.BatchJob{ID: "job-2", Status: domain.BatchProcessing, Total: 8}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.UpdateProgress(ctx, "job-2", Progress{Results: []domain.BatchResult{{Index: i, Success: true}}}); err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
	got, err := store.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Processed != 8 || got.Succeeded != 8 {
		t.Fatalf("lost progress updates: %+v", got)
	}
}

func TestBatchServiceWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	svc := New(store, &stubSimulator{}, stubCredentials{}, 10, nil)
	ctx := context.Background()
	job, err := svc.Start(ctx, "env-1", []string{"alpha"}, subjects(25))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	done, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if done.Status != domain.BatchDone || done.Processed != 25 || done.Processed != done.Succeeded+done.Failed {
		t.Fatalf("unexpected job %+v", done)
	}
}

func TestRedisJobStoreSealsPayloads(t *testing.T) {
	store, mr := newRedisStore(t)
	store = store.WithEncryption("chave-lote")
	ctx := context.Background()
	job := domain.BatchJob{
		ID:      "job-sealed",
		Status:  domain.BatchProcessing,
		Inputs:  []domain.Subject{{CPF: "52998224725"}},
		Total:   1,
		Results: []domain.BatchResult{},
	}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	raw, err := mr.Get("sistema-admin:lote:job-sealed")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if strings.Contains(raw, "52998224725") {
		t.Fatalf("stored job leaks the document number")
	}
	if _, err := store.UpdateProgress(ctx, job.ID, Progress{Results: []domain.BatchResult{{Index: 0, Success: true}}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Get(ctx, job.ID)
	if err != nil || got.Inputs[0].CPF != "52998224725" || got.Succeeded != 1 {
		t.Fatalf("unexpected job %+v err=%v", got, err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	other := NewRedisJobStoreWithClient(client, time.Hour).WithEncryption("outra")
	if _, err := other.Get(ctx, job.ID); !errors.Is(err, repository.ErrStorage) {
		t.Fatalf("expected storage error with the wrong key, got %v", err)
	}
}
