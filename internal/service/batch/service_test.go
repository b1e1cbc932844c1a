package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

type stubSimulator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *stubSimulator) Simulate(ctx context.Context, integrationID string, cred partner.Credential, subject domain.Subject) (domain.LookupOutcome, error) {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	// subjects whose CPF ends in 0 fail on every bank
	if subject.CPF[len(subject.CPF)-1] == '0' {
		return domain.LookupOutcome{}, errors.New("cpf sem margem")
	}
	if integrationID == "bravo" {
		return domain.LookupOutcome{Success: false, Error: "bravo indisponivel"}, nil
	}
	data, _ := json.Marshal(map[string]string{"cpf": subject.CPF})
	return domain.LookupOutcome{Success: true, Data: data}, nil
}

type stubCredentials struct{}

func (stubCredentials) GetCredential(ctx context.Context, environmentID, integrationID string) (envfile.Credential, error) {
	if environmentID != "env-1" {
		return envfile.Credential{}, fmt.Errorf("%w: environment %s", repository.ErrNotFound, environmentID)
	}
	if integrationID == "confianca" {
		return envfile.Credential{}, nil
	}
	login, password := integrationID+"-user", integrationID+"-pass"
	return envfile.Credential{Login: &login, Password: &password}, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	payloads  int
	completed int
}

func (p *recordingPublisher) Broadcast(jobID string, payload []byte) {
	p.mu.Lock()
	p.payloads++
	p.mu.Unlock()
}

func (p *recordingPublisher) Complete(jobID string) {
	p.mu.Lock()
	p.completed++
	p.mu.Unlock()
}

func subjects(n int) []domain.Subject {
	out := make([]domain.Subject, n)
	for i := range out {
		out[i] = domain.Subject{CPF: fmt.Sprintf("123.456.789-%02d", i)}
	}
	return out
}

func newService(sim *stubSimulator) Service {
	return New(NewMemoryJobStore(0), sim, stubCredentials{}, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBatchCompletionInvariant(t *testing.T) {
	for _, size := range []int{0, 1, 10, 25} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			sim := &stubSimulator{}
			publisher := &recordingPublisher{}
			svc := newService(sim).WithPublisher(publisher)
			ctx := context.Background()

			job, err := svc.Start(ctx, "env-1", []string{"alpha", "bravo"}, subjects(size))
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if job.Status != domain.BatchProcessing || job.Total != size {
				t.Fatalf("unexpected initial job %+v", job)
			}
			svc.Wait()

			done, err := svc.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if done.Status != domain.BatchDone || done.FinishedAt == nil {
				t.Fatalf("expected done job, got %+v", done)
			}
			if done.Processed != done.Total || done.Processed != done.Succeeded+done.Failed {
				t.Fatalf("counters broken: total=%d processed=%d succeeded=%d failed=%d", done.Total, done.Processed, done.Succeeded, done.Failed)
			}
			if len(done.Results) != size {
				t.Fatalf("expected %d results, got %d", size, len(done.Results))
			}
			if peak := sim.peak.Load(); peak > 10 {
				t.Fatalf("wave width exceeded: %d in flight", peak)
			}
			waves := (size + 9) / 10
			if publisher.completed != 1 {
				t.Fatalf("expected one completion notice, got %d", publisher.completed)
			}
			if publisher.payloads != waves+1 {
				t.Fatalf("expected %d progress broadcasts, got %d", waves+1, publisher.payloads)
			}
			for i, result := range done.Results {
				if result.Index != i {
					t.Fatalf("results out of order at %d: %d", i, result.Index)
				}
			}
		})
	}
}

func TestBatchRecordSucceedsWhenAnyBankSucceeds(t *testing.T) {
	sim := &stubSimulator{}
	svc := newService(sim)
	ctx := context.Background()
	job, err := svc.Start(ctx, "env-1", []string{"bravo", "alpha", "confianca"}, []domain.Subject{{CPF: "12345678901"}, {CPF: "12345678900"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	done, err := svc.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if done.Succeeded != 1 || done.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %+v", done)
	}
	first := done.Results[0]
	if len(first.Outcomes) != 3 || first.Outcomes[0].Success || !first.Outcomes[1].Success {
		t.Fatalf("unexpected outcomes %+v", first.Outcomes)
	}
	if first.Outcomes[2].Error != "credentials not configured" {
		t.Fatalf("expected missing credential outcome, got %+v", first.Outcomes[2])
	}
	if got := sim.calls.Load(); got != 4 {
		t.Fatalf("expected 4 partner calls, got %d", got)
	}
}

func TestStartValidation(t *testing.T) {
	svc := newService(&stubSimulator{})
	ctx := context.Background()
	if _, err := svc.Start(ctx, "env-1", []string{"alpha"}, []domain.Subject{{CPF: "123"}}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid cpf, got %v", err)
	}
	if _, err := svc.Start(ctx, "env-1", nil, subjects(1)); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected missing integrations, got %v", err)
	}
	if _, err := svc.Start(ctx, "env-1", []string{"delta"}, subjects(1)); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected unknown integration, got %v", err)
	}
	if _, err := svc.Start(ctx, "env-2", []string{"alpha"}, subjects(1)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected missing environment, got %v", err)
	}
}

func TestLookupSingleSubject(t *testing.T) {
	svc := newService(&stubSimulator{})
	result, err := svc.Lookup(context.Background(), "env-1", []string{"alpha"}, domain.Subject{CPF: "123.456.789-01", Name: " Ana "})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !result.Success || result.Subject.CPF != "12345678901" || result.Subject.Name != "Ana" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestMemoryJobStorePrunesFinishedJobs(t *testing.T) {
	store := NewMemoryJobStore(time.Hour)
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	ctx := context.Background()
	if err := store.Create(ctx, domain.BatchJob{ID: "old", Status: domain.BatchProcessing}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateProgress(ctx, "old", Progress{Done: true, At: base.Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := store.Create(ctx, domain.BatchJob{ID: "new", Status: domain.BatchProcessing}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected old job pruned, got %v", err)
	}
	if err := store.Create(ctx, domain.BatchJob{ID: "new"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}
