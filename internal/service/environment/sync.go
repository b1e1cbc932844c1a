package environment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// Unit kinds reported in a SyncReport.
const (
	KindIntegration = "banco"
	KindShared      = "compartilhado"
	KindDirectory   = "diretorio"
)

// UnitResult is the outcome of copying one integration or shared directory.
type UnitResult struct {
	Name    string `json:"nome"`
	Kind    string `json:"tipo"`
	Success bool   `json:"sucesso"`
	Skipped bool   `json:"ignorado,omitempty"`
	Files   int    `json:"arquivos"`
	Error   string `json:"erro,omitempty"`
}

// SyncReport aggregates unit outcomes for one environment. Unit failures do
// not fail the operation as a whole.
type SyncReport struct {
	EnvironmentID string       `json:"ambienteId"`
	Port          int          `json:"porta"`
	Directory     string       `json:"diretorio"`
	Results       []UnitResult `json:"resultados"`
}

func newReport(env domain.Environment) SyncReport {
	return SyncReport{EnvironmentID: env.ID, Port: env.Port, Directory: env.Directory, Results: []UnitResult{}}
}

func (r *SyncReport) add(result UnitResult) {
	r.Results = append(r.Results, result)
}

// Failures counts failed units.
func (r SyncReport) Failures() int {
	n := 0
	for _, result := range r.Results {
		if !result.Success && !result.Skipped {
			n++
		}
	}
	return n
}

// BulkSyncReport aggregates SyncReports across environments.
type BulkSyncReport struct {
	SyncedAt     time.Time    `json:"sincronizadoEm"`
	Environments []SyncReport `json:"ambientes"`
}

// SyncOne overwrites one integration of the environment from the template
// tree. The integration must be permitted for the environment.
func (s Service) SyncOne(ctx context.Context, environmentID, integrationID string) (UnitResult, error) {
	if environmentID == "" {
		return UnitResult{}, errEnvironmentIDRequired
	}
	if integrationID == "" {
		return UnitResult{}, errIntegrationRequired
	}
	env, err := s.store.GetEnvironment(ctx, environmentID)
	if err != nil {
		return UnitResult{}, err
	}
	if err := s.checkPermitted(env, integrationID); err != nil {
		return UnitResult{}, err
	}
	if env.Port == s.cfg.TemplatePort {
		return UnitResult{}, fmt.Errorf("%w: the template environment is the sync source", repository.ErrInvalidArgument)
	}
	result := s.copyIntegration(ctx, env, integrationID, true)
	if !result.Success {
		return result, fmt.Errorf("%w: sync %s: %s", repository.ErrFilesystem, integrationID, result.Error)
	}
	return result, nil
}

// SyncEnvironment overwrites every permitted integration plus the shared
// directories.
func (s Service) SyncEnvironment(ctx context.Context, environmentID string) (SyncReport, error) {
	if environmentID == "" {
		return SyncReport{}, errEnvironmentIDRequired
	}
	env, err := s.store.GetEnvironment(ctx, environmentID)
	if err != nil {
		return SyncReport{}, err
	}
	if env.Port == s.cfg.TemplatePort {
		return SyncReport{}, fmt.Errorf("%w: the template environment is the sync source", repository.ErrInvalidArgument)
	}
	return s.syncEnvironment(ctx, env), nil
}

// SyncAllActive runs SyncEnvironment over every active environment except
// the template and records the sync time.
func (s Service) SyncAllActive(ctx context.Context) (BulkSyncReport, error) {
	doc, err := s.store.Get(ctx)
	if err != nil {
		return BulkSyncReport{}, err
	}
	bulk := BulkSyncReport{Environments: []SyncReport{}}
	for _, env := range doc.Environments {
		if !env.Active || env.Port == s.cfg.TemplatePort {
			continue
		}
		bulk.Environments = append(bulk.Environments, s.syncEnvironment(ctx, env))
	}
	bulk.SyncedAt = time.Now().UTC()
	if err := s.store.SetLastSync(ctx, bulk.SyncedAt); err != nil {
		return bulk, err
	}
	s.logger.InfoContext(ctx, "active environments synchronized", "count", len(bulk.Environments))
	return bulk, nil
}

func (s Service) syncEnvironment(ctx context.Context, env domain.Environment) SyncReport {
	report := newReport(env)
	for _, id := range env.Integrations {
		report.add(s.copyIntegration(ctx, env, id, true))
	}
	for _, name := range s.cfg.SharedDirs {
		report.add(s.copyShared(ctx, env, name, true))
	}
	s.logger.InfoContext(ctx, "environment synchronized", "environment_id", env.ID, "port", env.Port, "failures", report.Failures())
	return report
}

func (s Service) checkPermitted(env domain.Environment, integrationID string) error {
	if _, ok := catalog.Lookup(integrationID); !ok {
		return fmt.Errorf("%w: integration %s", repository.ErrNotFound, integrationID)
	}
	if !env.Permits(integrationID) {
		return fmt.Errorf("%w: integration %s is not permitted for %s", repository.ErrForbidden, integrationID, env.Name)
	}
	return nil
}

func (s Service) templatePath() string {
	return s.layout.PortPath(s.cfg.TemplatePort)
}

func (s Service) copyIntegration(ctx context.Context, env domain.Environment, integrationID string, overwrite bool) UnitResult {
	result := UnitResult{Name: integrationID, Kind: KindIntegration}
	entry, ok := catalog.Lookup(integrationID)
	if !ok {
		result.Error = "unknown integration"
		s.record(KindIntegration, "error")
		return result
	}
	src := filepath.Join(s.templatePath(), entry.Directory)
	dst := filepath.Join(s.layout.Path(env.Directory), entry.Directory)
	report, err := s.syncer.Copy(ctx, src, dst, dirsync.Options{Integration: integrationID, Overwrite: overwrite})
	result.Files = report.Files
	if err != nil {
		result.Error = err.Error()
		s.record(KindIntegration, "error")
		s.logger.WarnContext(ctx, "integration copy failed", "environment_id", env.ID, "integration", integrationID, "error", err)
		return result
	}
	result.Success = true
	s.record(KindIntegration, "ok")
	return result
}

// copyShared copies a shared resource directory. A directory absent from the
// template is skipped.
func (s Service) copyShared(ctx context.Context, env domain.Environment, name string, overwrite bool) UnitResult {
	result := UnitResult{Name: name, Kind: KindShared}
	src := filepath.Join(s.templatePath(), name)
	dst := filepath.Join(s.layout.Path(env.Directory), name)
	report, err := s.syncer.Copy(ctx, src, dst, dirsync.Options{Overwrite: overwrite})
	result.Files = report.Files
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result.Skipped = true
		result.Error = "missing from template"
		s.record(KindShared, "skipped")
	case err != nil:
		result.Error = err.Error()
		s.record(KindShared, "error")
		s.logger.WarnContext(ctx, "shared directory copy failed", "environment_id", env.ID, "directory", name, "error", err)
	default:
		result.Success = true
		s.record(KindShared, "ok")
	}
	return result
}
