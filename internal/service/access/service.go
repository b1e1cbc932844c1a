package access

import (
	"context"
	"log/slog"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
)

// Service manages access profiles and environment logins.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// New constructs a Service.
func New(st *store.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{store: st, logger: logger.With("component", "access")}
}

// CreateProfile stores a new profile.
func (s Service) CreateProfile(ctx context.Context, input store.NewProfile) (domain.Profile, error) {
	profile, err := s.store.CreateProfile(ctx, input)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.InfoContext(ctx, "profile created", "profile_id", profile.ID, "name", profile.Name)
	return profile, nil
}

// ListProfiles returns every profile.
func (s Service) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// GetProfile returns one profile.
func (s Service) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// UpdateProfile applies a patch.
func (s Service) UpdateProfile(ctx context.Context, id string, patch store.ProfilePatch) (domain.Profile, error) {
	profile, err := s.store.UpdateProfile(ctx, id, patch)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.InfoContext(ctx, "profile updated", "profile_id", id)
	return profile, nil
}

// DeleteProfile removes a profile no login references.
func (s Service) DeleteProfile(ctx context.Context, id string) error {
	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "profile deleted", "profile_id", id)
	return nil
}

// CreateLogin stores a new login.
func (s Service) CreateLogin(ctx context.Context, input store.NewLogin) (domain.Login, error) {
	login, err := s.store.CreateLogin(ctx, input)
	if err != nil {
		return domain.Login{}, err
	}
	s.logger.InfoContext(ctx, "login created", "login_id", login.ID, "environment_id", login.EnvironmentID)
	return login, nil
}

// ListLogins returns the logins, optionally restricted to one environment.
func (s Service) ListLogins(ctx context.Context, environmentID string) ([]domain.Login, error) {
	return s.store.ListLogins(ctx, environmentID)
}

// GetLogin returns one login without its secret.
func (s Service) GetLogin(ctx context.Context, id string) (domain.Login, error) {
	return s.store.GetLogin(ctx, id)
}

// UpdateLogin applies a patch.
func (s Service) UpdateLogin(ctx context.Context, id string, patch store.LoginPatch) (domain.Login, error) {
	login, err := s.store.UpdateLogin(ctx, id, patch)
	if err != nil {
		return domain.Login{}, err
	}
	s.logger.InfoContext(ctx, "login updated", "login_id", id, "password_changed", patch.Password != nil)
	return login, nil
}

// DeleteLogin removes a login.
func (s Service) DeleteLogin(ctx context.Context, id string) error {
	if err := s.store.DeleteLogin(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "login deleted", "login_id", id)
	return nil
}
