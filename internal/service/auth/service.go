package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
	jwtpkg "github.com/ederalmeidasantos-byte/sistema-admin/pkg/jwt"
)

var (
	// ErrInvalidCredentials is returned when the admin credentials do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for missing, malformed or expired tokens.
	ErrInvalidToken       = errors.New("invalid token")
)

// Principal is the authenticated caller.
type Principal struct {
	Role          string              `json:"papel"`
	Username      string              `json:"usuario"`
	LoginID       string              `json:"loginId,omitempty"`
	EnvironmentID string              `json:"ambienteId,omitempty"`
	ProfileID     string              `json:"perfilId,omitempty"`
	Capabilities  domain.Capabilities `json:"permissoes"`
}

// IsAdmin reports whether the caller is the administrator.
func (p Principal) IsAdmin() bool {
	return p.Role == jwtpkg.RoleAdmin
}

// Can reports whether the caller holds the capability. The administrator
// holds every capability.
func (p Principal) Can(capability domain.Capability) bool {
	return p.IsAdmin() || p.Capabilities.Allows(capability)
}

// CanAccessEnvironment reports whether the caller may act on the environment.
// Logins are confined to their own environment.
func (p Principal) CanAccessEnvironment(environmentID string) bool {
	return p.IsAdmin() || (environmentID != "" && p.EnvironmentID == environmentID)
}

// Session is an issued token and the principal it identifies.
type Session struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"expiraEm"`
	Principal Principal     `json:"principal"`
}

// Service handles authentication workflows.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	cfg    config.AdminConfig
}

// New constructs a Service.
func New(st *store.Store, logger *slog.Logger, cfg config.AdminConfig) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{store: st, logger: logger.With("component", "auth"), cfg: cfg}
}

// LoginAdmin authenticates the administrator. ADMIN_PASSWORD may hold a
// bcrypt hash instead of the plain password.
func (s Service) LoginAdmin(ctx context.Context, username, password string) (Session, error) {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.cfg.AdminUser)) != 1 || !s.adminPasswordMatches(password) {
		s.logger.WarnContext(ctx, "admin login rejected", "username", username)
		return Session{}, ErrInvalidCredentials
	}
	principal := Principal{Role: jwtpkg.RoleAdmin, Username: s.cfg.AdminUser, Capabilities: domain.AllCapabilities()}
	session, err := s.issue(principal)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "admin logged in")
	return session, nil
}

// Login authenticates an environment login. Failures carry the store's
// authentication error kinds.
func (s Service) Login(ctx context.Context, username, password string) (Session, error) {
	found, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.InfoContext(ctx, "login rejected", "username", username, "reason", store.AuthKind(err))
		return Session{}, err
	}
	session, err := s.issue(fromStore(found))
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "login authenticated", "login_id", found.Login.ID, "environment_id", found.Environment.ID)
	return session, nil
}

// Authorize validates a bearer token. Login principals are reloaded so that
// deactivation and capability changes apply to tokens already issued.
func (s Service) Authorize(ctx context.Context, token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, fmt.Errorf("%w: token required", ErrInvalidToken)
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	switch claims.Role {
	case jwtpkg.RoleAdmin:
		return Principal{Role: jwtpkg.RoleAdmin, Username: claims.Subject, Capabilities: domain.AllCapabilities()}, nil
	case jwtpkg.RoleLogin:
		found, err := s.store.Resolve(ctx, claims.LoginID)
		if err != nil {
			return Principal{}, err
		}
		return fromStore(found), nil
	default:
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
}

func (s Service) adminPasswordMatches(password string) bool {
	if crypto.IsPasswordHash(s.cfg.AdminPassword) {
		return crypto.ComparePassword([]byte(s.cfg.AdminPassword), password) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
}

func (s Service) issue(principal Principal) (Session, error) {
	token, err := jwtpkg.GenerateToken(principal.Username, jwtpkg.Claims{
		Role:          principal.Role,
		LoginID:       principal.LoginID,
		EnvironmentID: principal.EnvironmentID,
		ProfileID:     principal.ProfileID,
	}, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresIn: s.cfg.AccessTokenTTL, Principal: principal}, nil
}

func fromStore(found store.Principal) Principal {
	principal := Principal{
		Role:          jwtpkg.RoleLogin,
		Username:      found.Login.Username,
		LoginID:       found.Login.ID,
		EnvironmentID: found.Environment.ID,
		Capabilities:  found.Capabilities(),
	}
	if found.Profile != nil {
		principal.ProfileID = found.Profile.ID
	}
	return principal
}
