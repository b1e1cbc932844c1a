// Package batch runs single and batch CLT simulations against partner banks.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// DefaultWidth is the number of lookups in flight per wave.
const DefaultWidth = 10

// Simulator queries one partner bank.
type Simulator interface {
	Simulate(ctx context.Context, integrationID string, cred partner.Credential, subject domain.Subject) (domain.LookupOutcome, error)
}

// CredentialSource resolves the partner credential stored for an environment.
type CredentialSource interface {
	GetCredential(ctx context.Context, environmentID, integrationID string) (envfile.Credential, error)
}

// Publisher receives job snapshots after every wave and is told when the
// job finished.
type Publisher interface {
	Broadcast(jobID string, payload []byte)
	Complete(jobID string)
}

// Recorder observes per-record outcomes.
type Recorder interface {
	RecordBatchRecord(outcome string)
}

// Service dispatches lookups.
type Service struct {
	jobs      JobStore
	simulator Simulator
	creds     CredentialSource
	width     int
	logger    *slog.Logger
	publisher Publisher
	metrics   Recorder
	wg        *sync.WaitGroup
}

// New constructs a batch service. A width below one uses DefaultWidth.
func New(jobs JobStore, simulator Simulator, creds CredentialSource, width int, logger *slog.Logger) Service {
	if width < 1 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		jobs:      jobs,
		simulator: simulator,
		creds:     creds,
		width:     width,
		logger:    logger.With("component", "batch"),
		wg:        &sync.WaitGroup{},
	}
}

// WithPublisher attaches a progress publisher.
func (s Service) WithPublisher(p Publisher) Service {
	s.publisher = p
	return s
}

// WithMetrics attaches a record outcome recorder.
func (s Service) WithMetrics(r Recorder) Service {
	s.metrics = r
	return s
}

// Lookup runs one subject against each integration in turn.
func (s Service) Lookup(ctx context.Context, environmentID string, integrations []string, subject domain.Subject) (domain.BatchResult, error) {
	subject, err := normalizeSubject(subject)
	if err != nil {
		return domain.BatchResult{}, err
	}
	creds, err := s.resolve(ctx, environmentID, integrations)
	if err != nil {
		return domain.BatchResult{}, err
	}
	return s.lookup(ctx, 0, subject, integrations, creds), nil
}

// Start creates a job and processes it in the background in waves of the
// configured width. A running job cannot be cancelled; its state is observed
// through Get.
func (s Service) Start(ctx context.Context, environmentID string, integrations []string, subjects []domain.Subject) (domain.BatchJob, error) {
	inputs := make([]domain.Subject, 0, len(subjects))
	for i, subject := range subjects {
		normalized, err := normalizeSubject(subject)
		if err != nil {
			return domain.BatchJob{}, fmt.Errorf("record %d: %w", i, err)
		}
		inputs = append(inputs, normalized)
	}
	creds, err := s.resolve(ctx, environmentID, integrations)
	if err != nil {
		return domain.BatchJob{}, err
	}
	job := domain.BatchJob{
		ID:            uuid.NewString(),
		EnvironmentID: environmentID,
		Status:        domain.BatchProcessing,
		Integrations:  append([]string(nil), integrations...),
		Inputs:        inputs,
		Total:         len(inputs),
		Results:       []domain.BatchResult{},
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return domain.BatchJob{}, err
	}
	s.logger.InfoContext(ctx, "batch job started", "job_id", job.ID, "environment_id", environmentID, "total", job.Total)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.WithoutCancel(ctx), job, creds)
	}()
	return job, nil
}

// Get returns the job state.
func (s Service) Get(ctx context.Context, id string) (domain.BatchJob, error) {
	return s.jobs.Get(ctx, id)
}

// Wait blocks until every started job finished.
func (s Service) Wait() {
	s.wg.Wait()
}

func (s Service) run(ctx context.Context, job domain.BatchJob, creds map[string]partner.Credential) {
	for start := 0; start < len(job.Inputs); start += s.width {
		end := min(start+s.width, len(job.Inputs))
		wave := make([]domain.BatchResult, end-start)
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				wave[i-start] = s.lookup(ctx, i, job.Inputs[i], job.Integrations, creds)
				return nil
			})
		}
		_ = g.Wait()
		s.progress(ctx, job.ID, Progress{Results: wave})
	}
	final := s.progress(ctx, job.ID, Progress{Done: true, At: time.Now()})
	if s.publisher != nil {
		s.publisher.Complete(job.ID)
	}
	s.logger.InfoContext(ctx, "batch job finished", "job_id", job.ID, "processed", final.Processed, "succeeded", final.Succeeded, "failed", final.Failed)
}

func (s Service) progress(ctx context.Context, id string, progress Progress) domain.BatchJob {
	job, err := s.jobs.UpdateProgress(ctx, id, progress)
	if err != nil {
		s.logger.ErrorContext(ctx, "record batch progress", "job_id", id, "error", err)
		return job
	}
	for _, result := range progress.Results {
		if s.metrics != nil {
			outcome := "failed"
			if result.Success {
				outcome = "succeeded"
			}
			s.metrics.RecordBatchRecord(outcome)
		}
	}
	if s.publisher != nil {
		if payload, err := json.Marshal(job); err == nil {
			s.publisher.Broadcast(id, payload)
		}
	}
	return job
}

// lookup queries every integration for one subject. The record succeeds when
// any integration answered successfully.
func (s Service) lookup(ctx context.Context, index int, subject domain.Subject, integrations []string, creds map[string]partner.Credential) domain.BatchResult {
	result := domain.BatchResult{Index: index, Subject: subject, Outcomes: make([]domain.LookupOutcome, 0, len(integrations))}
	for _, id := range integrations {
		cred, ok := creds[id]
		if !ok {
			result.Outcomes = append(result.Outcomes, domain.LookupOutcome{Integration: id, Error: "credentials not configured"})
			continue
		}
		outcome, err := s.simulator.Simulate(ctx, id, cred, subject)
		outcome.Integration = id
		if err != nil {
			outcome.Success = false
			outcome.Error = err.Error()
		}
		if outcome.Success {
			result.Success = true
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

// resolve loads the stored credential of each integration. Integrations
// without a complete credential are left out and fail per record.
func (s Service) resolve(ctx context.Context, environmentID string, integrations []string) (map[string]partner.Credential, error) {
	if strings.TrimSpace(environmentID) == "" {
		return nil, fmt.Errorf("%w: environment id required", repository.ErrInvalidArgument)
	}
	if len(integrations) == 0 {
		return nil, fmt.Errorf("%w: at least one integration required", repository.ErrInvalidArgument)
	}
	if unknown, ok := catalog.Known(integrations); !ok {
		return nil, fmt.Errorf("%w: unknown integration %q", repository.ErrInvalidArgument, unknown)
	}
	creds := make(map[string]partner.Credential, len(integrations))
	for _, id := range integrations {
		cred, err := s.creds.GetCredential(ctx, environmentID, id)
		if err != nil {
			return nil, err
		}
		if cred.Login == nil || cred.Password == nil {
			s.logger.WarnContext(ctx, "integration without credentials", "environment_id", environmentID, "integration", id)
			continue
		}
		creds[id] = partner.Credential{Login: *cred.Login, Password: *cred.Password}
	}
	return creds, nil
}

func normalizeSubject(subject domain.Subject) (domain.Subject, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == '.' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return 'x'
	}, subject.CPF)
	if len(digits) != 11 || strings.ContainsRune(digits, 'x') {
		return domain.Subject{}, fmt.Errorf("%w: cpf must have 11 digits", repository.ErrInvalidArgument)
	}
	subject.CPF = digits
	subject.Name = strings.TrimSpace(subject.Name)
	subject.Phone = strings.TrimSpace(subject.Phone)
	subject.BirthDate = strings.TrimSpace(subject.BirthDate)
	return subject, nil
}
