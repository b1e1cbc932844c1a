package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
)

// Authentication failures, checked in this order.
var (
	ErrLoginNotFound       = errors.New("login not found")
	ErrLoginInactive       = errors.New("login inactive")
	ErrWrongPassword       = errors.New("wrong password")
	ErrEnvironmentMissing  = errors.New("environment missing")
	ErrEnvironmentInactive = errors.New("environment inactive")
	ErrProfileInactive     = errors.New("profile inactive")
)

// AuthKind maps an authentication failure to its machine-readable kind, or ""
// when err is not one.
func AuthKind(err error) string {
	switch {
	case errors.Is(err, ErrLoginNotFound):
		return "login_not_found"
	case errors.Is(err, ErrLoginInactive):
		return "login_inactive"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrEnvironmentMissing):
		return "environment_missing"
	case errors.Is(err, ErrEnvironmentInactive):
		return "environment_inactive"
	case errors.Is(err, ErrProfileInactive):
		return "profile_inactive"
	default:
		return ""
	}
}

// Principal is an authenticated login with the records it references.
type Principal struct {
	Login       domain.Login
	Environment domain.Environment
	Profile     *domain.Profile
}

// Capabilities returns the profile flags; a login without profile has none.
func (p Principal) Capabilities() domain.Capabilities {
	if p.Profile == nil {
		return domain.Capabilities{}
	}
	return p.Profile.Capabilities
}

// Authenticate checks username and password. A dangling profile reference is
// treated like an inactive profile.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return Principal{}, err
	}
	found, err := resolve(doc, username)
	if err != nil {
		return Principal{}, err
	}
	if !found.Login.Active {
		return Principal{}, ErrLoginInactive
	}
	if err := crypto.ComparePassword([]byte(found.Login.SecretHash), password); err != nil {
		return Principal{}, ErrWrongPassword
	}
	if err := found.check(); err != nil {
		return Principal{}, err
	}

	s.touch(ctx, found.Login.ID)
	return found.redacted(), nil
}

// Resolve reloads an already authenticated login and applies the same
// activity checks as Authenticate, without a password.
func (s *Store) Resolve(ctx context.Context, loginID string) (Principal, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return Principal{}, err
	}
	idx := loginIndex(doc, loginID)
	if idx < 0 {
		return Principal{}, ErrLoginNotFound
	}
	found, err := resolve(doc, doc.Logins[idx].Username)
	if err != nil {
		return Principal{}, err
	}
	if !found.Login.Active {
		return Principal{}, ErrLoginInactive
	}
	if err := found.check(); err != nil {
		return Principal{}, err
	}
	return found.redacted(), nil
}

func resolve(doc *domain.Document, username string) (candidate, error) {
	username = strings.TrimSpace(username)
	for _, login := range doc.Logins {
		if !sameName(login.Username, username) {
			continue
		}
		p := candidate{}
		p.Login = login
		if idx := environmentIndex(doc, login.EnvironmentID); idx >= 0 {
			env := doc.Environments[idx]
			p.environment = &env
		}
		if login.ProfileID != nil {
			p.hasProfileRef = true
			if idx := profileIndex(doc, *login.ProfileID); idx >= 0 {
				profile := doc.Profiles[idx]
				p.Profile = &profile
			}
		}
		return p, nil
	}
	return candidate{}, fmt.Errorf("%w: %s", ErrLoginNotFound, username)
}

type candidate struct {
	Principal
	environment   *domain.Environment
	hasProfileRef bool
}

func (p *candidate) check() error {
	if p.environment == nil {
		return ErrEnvironmentMissing
	}
	if !p.environment.Active {
		return ErrEnvironmentInactive
	}
	p.Environment = *p.environment
	if p.hasProfileRef && (p.Profile == nil || !p.Profile.Active) {
		return ErrProfileInactive
	}
	return nil
}

func (p candidate) redacted() Principal {
	out := p.Principal
	out.Login = out.Login.Redacted()
	out.Environment = out.Environment.Redacted()
	return out
}

func (s *Store) touch(ctx context.Context, loginID string) {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		if idx := loginIndex(doc, loginID); idx >= 0 {
			now := s.timestamp()
			doc.Logins[idx].LastAccessAt = &now
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "record last access", "login_id", loginID, "error", err)
	}
}
