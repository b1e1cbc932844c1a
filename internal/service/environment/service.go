// Package environment provisions, reconciles and synchronizes environments.
package environment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/workspace"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
)

// Verifier checks a credential against the partner owning it.
type Verifier interface {
	Verify(ctx context.Context, integrationID, login, password string, envVars map[string]string) (partner.VerifyResult, error)
}

// Detector lists environments present on disk.
type Detector interface {
	Detect(ctx context.Context) []domain.DetectedEnvironment
}

// SyncRecorder observes synchronization outcomes.
type SyncRecorder interface {
	RecordSync(kind, outcome string)
}

// Service is the environment lifecycle manager. It owns the store and the
// synchronizer; the store never calls back into it.
type Service struct {
	store    *store.Store
	layout   *workspace.Manager
	syncer   *dirsync.Synchronizer
	verifier Verifier
	metrics  SyncRecorder
	logger   *slog.Logger
	cfg      config.AdminConfig
}

// New constructs the lifecycle manager. verifier may be nil, in which case
// verified credential updates fail.
func New(st *store.Store, layout *workspace.Manager, syncer *dirsync.Synchronizer, verifier Verifier, logger *slog.Logger, cfg config.AdminConfig) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		store:    st,
		layout:   layout,
		syncer:   syncer,
		verifier: verifier,
		logger:   logger.With("component", "environment"),
		cfg:      cfg,
	}
}

// WithMetrics attaches a sync outcome recorder.
func (s Service) WithMetrics(recorder SyncRecorder) Service {
	s.metrics = recorder
	return s
}

var (
	errEnvironmentIDRequired = fmt.Errorf("%w: environment id required", repository.ErrInvalidArgument)
	errIntegrationRequired   = fmt.Errorf("%w: integration id required", repository.ErrInvalidArgument)
)

// List returns every environment without secrets.
func (s Service) List(ctx context.Context) ([]domain.Environment, error) {
	return s.store.ListEnvironments(ctx)
}

// Get returns one environment without secrets.
func (s Service) Get(ctx context.Context, id string) (domain.Environment, error) {
	if id == "" {
		return domain.Environment{}, errEnvironmentIDRequired
	}
	env, err := s.store.GetEnvironment(ctx, id)
	if err != nil {
		return domain.Environment{}, err
	}
	return env.Redacted(), nil
}

// Update renames, reassigns the pipeline or toggles activity.
func (s Service) Update(ctx context.Context, id string, patch store.EnvironmentPatch) (domain.Environment, error) {
	if id == "" {
		return domain.Environment{}, errEnvironmentIDRequired
	}
	return s.store.UpdateEnvironment(ctx, id, patch)
}

// UpdateIntegrations replaces the permitted integration set. Every member
// must belong to the catalog.
func (s Service) UpdateIntegrations(ctx context.Context, id string, integrations []string) (domain.Environment, error) {
	if id == "" {
		return domain.Environment{}, errEnvironmentIDRequired
	}
	if unknown, ok := catalog.Known(integrations); !ok {
		return domain.Environment{}, fmt.Errorf("%w: unknown integration %q", repository.ErrInvalidArgument, unknown)
	}
	return s.store.UpdateEnvironmentIntegrations(ctx, id, integrations)
}

// Integrations lists the integration catalog.
func (s Service) Integrations(ctx context.Context) ([]domain.Integration, error) {
	return s.store.Integrations(ctx)
}

// DeleteResult reports an environment removal.
type DeleteResult struct {
	Environment domain.Environment `json:"ambiente"`
	Warning     string             `json:"aviso,omitempty"`
}

// Delete removes the record and then, best effort, its directory. A failed
// directory removal is reported as a warning and never restores the record.
// The template environment cannot be deleted.
func (s Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	if id == "" {
		return DeleteResult{}, errEnvironmentIDRequired
	}
	env, err := s.store.GetEnvironment(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if env.Port == s.cfg.TemplatePort {
		return DeleteResult{}, fmt.Errorf("%w: the template environment cannot be deleted", repository.ErrForbidden)
	}
	removed, err := s.store.DeleteEnvironment(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	result := DeleteResult{Environment: removed}
	if removed.Directory == "" {
		return result, nil
	}
	if err := s.layout.CleanupByName(removed.Directory); err != nil {
		result.Warning = fmt.Sprintf("record removed but directory %s was not: %v", removed.Directory, err)
		s.logger.WarnContext(ctx, "environment directory not removed", "environment_id", id, "directory", removed.Directory, "error", err)
	}
	return result, nil
}

func (s Service) record(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSync(kind, outcome)
	}
}
