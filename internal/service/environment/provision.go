package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
)

// ProvisionInput captures the attributes of a new environment.
type ProvisionInput struct {
	Name          string
	Port          int
	OwnerUser     string
	OwnerPassword string
	Integrations  []string
	PipelineID    *string
}

// ProvisionResult is the registered environment plus the outcome of
// materializing its directory tree.
type ProvisionResult struct {
	Environment     domain.Environment `json:"ambiente"`
	Materialization SyncReport         `json:"materializacao"`
}

// Provision registers the environment and then materializes its directory.
// Materialization failures are reported in the result; the registration is
// never rolled back.
func (s Service) Provision(ctx context.Context, input ProvisionInput) (ProvisionResult, error) {
	if input.Port < s.cfg.PortMin || input.Port > s.cfg.PortMax {
		return ProvisionResult{}, fmt.Errorf("%w: port %d outside %d-%d", repository.ErrInvalidArgument, input.Port, s.cfg.PortMin, s.cfg.PortMax)
	}
	if input.Port == s.cfg.TemplatePort || input.Port == s.cfg.AdminPort {
		return ProvisionResult{}, fmt.Errorf("%w: port %d is reserved", repository.ErrInvalidArgument, input.Port)
	}
	if unknown, ok := catalog.Known(input.Integrations); !ok {
		return ProvisionResult{}, fmt.Errorf("%w: unknown integration %q", repository.ErrInvalidArgument, unknown)
	}

	env, err := s.store.CreateEnvironment(ctx, store.NewEnvironment{
		Name:          input.Name,
		Port:          input.Port,
		Directory:     s.layout.DirName(input.Port),
		OwnerUser:     input.OwnerUser,
		OwnerPassword: input.OwnerPassword,
		Integrations:  input.Integrations,
		PipelineID:    input.PipelineID,
	})
	if err != nil {
		return ProvisionResult{}, err
	}

	report := s.materialize(ctx, env)
	s.logger.InfoContext(ctx, "environment provisioned", "environment_id", env.ID, "port", env.Port, "failures", report.Failures())
	return ProvisionResult{Environment: env, Materialization: report}, nil
}

// materialize creates the environment directory with a base credential file
// and copies every permitted integration and shared directory that is not
// there yet.
func (s Service) materialize(ctx context.Context, env domain.Environment) SyncReport {
	report := newReport(env)
	dir, err := s.layout.Prepare(env.Directory)
	if err != nil {
		report.add(UnitResult{Name: env.Directory, Kind: KindDirectory, Error: err.Error()})
		return report
	}
	if err := writeBaseEnv(dir, env); err != nil {
		report.add(UnitResult{Name: detector.CredentialFile, Kind: KindDirectory, Error: err.Error()})
	}
	for _, id := range env.Integrations {
		report.add(s.copyIntegration(ctx, env, id, false))
	}
	for _, name := range s.cfg.SharedDirs {
		report.add(s.copyShared(ctx, env, name, false))
	}
	return report
}

func writeBaseEnv(dir string, env domain.Environment) error {
	path := filepath.Join(dir, detector.CredentialFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", strings.Join(strings.Fields(env.Name), " "))
	fmt.Fprintf(&b, "PORT=%d\n", env.Port)
	b.WriteString("NODE_ENV=production\n")
	return dirsync.WriteFileAtomic(path, []byte(b.String()), 0o600)
}
