package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// MaxPort is the highest valid TCP port.
const MaxPort = 65535

// NewEnvironment carries the attributes of an environment being registered.
type NewEnvironment struct {
	Name          string
	Port          int
	Directory     string
	OwnerUser     string
	OwnerPassword string
	Integrations  []string
	PipelineID    *string
}

// EnvironmentPatch updates selected environment attributes. A PipelineID
// pointing to an empty string clears the pipeline reference.
type EnvironmentPatch struct {
	Name       *string
	PipelineID *string
	Active     *bool
}

// CreateEnvironment registers an active environment. Port and name must be
// unused by every environment, active or not.
func (s *Store) CreateEnvironment(ctx context.Context, input NewEnvironment) (domain.Environment, error) {
	if err := required("name", input.Name); err != nil {
		return domain.Environment{}, err
	}
	if err := required("owner user", input.OwnerUser); err != nil {
		return domain.Environment{}, err
	}
	if err := required("owner password", input.OwnerPassword); err != nil {
		return domain.Environment{}, err
	}
	if err := required("directory", input.Directory); err != nil {
		return domain.Environment{}, err
	}
	if input.Port <= 0 || input.Port > MaxPort {
		return domain.Environment{}, fmt.Errorf("%w: port %d out of range", repository.ErrInvalidArgument, input.Port)
	}
	hash, err := hashSecret(input.OwnerPassword)
	if err != nil {
		return domain.Environment{}, err
	}

	var created domain.Environment
	_, err = s.Update(ctx, func(doc *domain.Document) error {
		for _, env := range doc.Environments {
			if env.Port == input.Port {
				return fmt.Errorf("%w: port %d already used by %s", repository.ErrConflict, input.Port, env.Name)
			}
			if sameName(env.Name, input.Name) {
				return fmt.Errorf("%w: environment name %q already used", repository.ErrConflict, input.Name)
			}
		}
		now := s.timestamp()
		created = domain.Environment{
			ID:           newID(),
			Name:         strings.TrimSpace(input.Name),
			Port:         input.Port,
			Directory:    input.Directory,
			OwnerUser:    strings.TrimSpace(input.OwnerUser),
			SecretHash:   hash,
			Integrations: dedupe(input.Integrations),
			PipelineID:   optionalID(input.PipelineID),
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		doc.Environments = append(doc.Environments, created)
		return nil
	})
	if err != nil {
		return domain.Environment{}, err
	}
	s.logger.InfoContext(ctx, "environment registered", "environment_id", created.ID, "port", created.Port)
	return created.Redacted(), nil
}

// ListEnvironments returns every environment without secrets, ordered by port.
func (s *Store) ListEnvironments(ctx context.Context) ([]domain.Environment, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Environment, 0, len(doc.Environments))
	for _, env := range doc.Environments {
		out = append(out, env.Redacted())
	}
	sortEnvironments(out)
	return out, nil
}

// GetEnvironment returns the full record including the secret hash. Callers
// must redact it before it leaves the process.
func (s *Store) GetEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return domain.Environment{}, err
	}
	idx := environmentIndex(doc, id)
	if idx < 0 {
		return domain.Environment{}, fmt.Errorf("%w: environment %s", repository.ErrNotFound, id)
	}
	return doc.Environments[idx], nil
}

// GetEnvironmentByPort returns the environment bound to port.
func (s *Store) GetEnvironmentByPort(ctx context.Context, port int) (domain.Environment, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return domain.Environment{}, err
	}
	for _, env := range doc.Environments {
		if env.Port == port {
			return env, nil
		}
	}
	return domain.Environment{}, fmt.Errorf("%w: environment on port %d", repository.ErrNotFound, port)
}

// UpdateEnvironmentIntegrations replaces the permitted integration set.
// Members are stored as given.
func (s *Store) UpdateEnvironmentIntegrations(ctx context.Context, id string, integrations []string) (domain.Environment, error) {
	var updated domain.Environment
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := environmentIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: environment %s", repository.ErrNotFound, id)
		}
		env := &doc.Environments[idx]
		env.Integrations = dedupe(integrations)
		env.UpdatedAt = s.timestamp()
		updated = *env
		return nil
	})
	if err != nil {
		return domain.Environment{}, err
	}
	return updated.Redacted(), nil
}

// UpdateEnvironment applies patch to the environment.
func (s *Store) UpdateEnvironment(ctx context.Context, id string, patch EnvironmentPatch) (domain.Environment, error) {
	if patch.Name != nil {
		if err := required("name", *patch.Name); err != nil {
			return domain.Environment{}, err
		}
	}
	var updated domain.Environment
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := environmentIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: environment %s", repository.ErrNotFound, id)
		}
		if patch.Name != nil {
			for i, other := range doc.Environments {
				if i != idx && sameName(other.Name, *patch.Name) {
					return fmt.Errorf("%w: environment name %q already used", repository.ErrConflict, *patch.Name)
				}
			}
		}
		env := &doc.Environments[idx]
		if patch.Name != nil {
			env.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.PipelineID != nil {
			env.PipelineID = optionalID(patch.PipelineID)
		}
		if patch.Active != nil {
			env.Active = *patch.Active
		}
		env.UpdatedAt = s.timestamp()
		updated = *env
		return nil
	})
	if err != nil {
		return domain.Environment{}, err
	}
	return updated.Redacted(), nil
}

// DeleteEnvironment removes the record and returns it. Logins bound to the
// environment are kept and fail authentication afterwards.
func (s *Store) DeleteEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	var removed domain.Environment
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := environmentIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: environment %s", repository.ErrNotFound, id)
		}
		removed = doc.Environments[idx]
		doc.Environments = append(doc.Environments[:idx], doc.Environments[idx+1:]...)
		return nil
	})
	if err != nil {
		return domain.Environment{}, err
	}
	s.logger.InfoContext(ctx, "environment removed", "environment_id", removed.ID, "port", removed.Port)
	return removed.Redacted(), nil
}

func environmentIndex(doc *domain.Document, id string) int {
	for i, env := range doc.Environments {
		if env.ID == id {
			return i
		}
	}
	return -1
}

func sortEnvironments(envs []domain.Environment) {
	sort.Slice(envs, func(i, j int) bool { return envs[i].Port < envs[j].Port })
}

func optionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
