package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// NewLogin carries the attributes of a login being created. A nil Active
// creates an active login.
type NewLogin struct {
	Username      string
	Password      string
	EnvironmentID string
	ProfileID     *string
	Active        *bool
}

// LoginPatch updates selected login attributes. A ProfileID pointing to an
// empty string detaches the profile.
type LoginPatch struct {
	Username      *string
	Password      *string
	EnvironmentID *string
	ProfileID     *string
	Active        *bool
}

// CreateLogin stores a login. Usernames are unique ignoring case and the
// referenced environment and profile must exist.
func (s *Store) CreateLogin(ctx context.Context, input NewLogin) (domain.Login, error) {
	if err := required("username", input.Username); err != nil {
		return domain.Login{}, err
	}
	if err := required("password", input.Password); err != nil {
		return domain.Login{}, err
	}
	if err := required("environment", input.EnvironmentID); err != nil {
		return domain.Login{}, err
	}
	hash, err := hashSecret(input.Password)
	if err != nil {
		return domain.Login{}, err
	}
	var created domain.Login
	_, err = s.Update(ctx, func(doc *domain.Document) error {
		if err := checkUsername(doc, input.Username, ""); err != nil {
			return err
		}
		profileID := optionalID(input.ProfileID)
		if err := checkReferences(doc, input.EnvironmentID, profileID); err != nil {
			return err
		}
		now := s.timestamp()
		created = domain.Login{
			ID:            newID(),
			Username:      strings.TrimSpace(input.Username),
			SecretHash:    hash,
			EnvironmentID: input.EnvironmentID,
			ProfileID:     profileID,
			Active:        input.Active == nil || *input.Active,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		doc.Logins = append(doc.Logins, created)
		return nil
	})
	if err != nil {
		return domain.Login{}, err
	}
	s.logger.InfoContext(ctx, "login created", "login_id", created.ID, "environment_id", created.EnvironmentID)
	return created.Redacted(), nil
}

// ListLogins returns logins without secrets. A non-empty environmentID
// restricts the result to that environment.
func (s *Store) ListLogins(ctx context.Context, environmentID string) ([]domain.Login, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Login, 0, len(doc.Logins))
	for _, login := range doc.Logins {
		if environmentID != "" && login.EnvironmentID != environmentID {
			continue
		}
		out = append(out, login.Redacted())
	}
	return out, nil
}

// GetLogin returns a login without its secret.
func (s *Store) GetLogin(ctx context.Context, id string) (domain.Login, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return domain.Login{}, err
	}
	idx := loginIndex(doc, id)
	if idx < 0 {
		return domain.Login{}, fmt.Errorf("%w: login %s", repository.ErrNotFound, id)
	}
	return doc.Logins[idx].Redacted(), nil
}

// UpdateLogin applies patch to the login.
func (s *Store) UpdateLogin(ctx context.Context, id string, patch LoginPatch) (domain.Login, error) {
	if patch.Username != nil {
		if err := required("username", *patch.Username); err != nil {
			return domain.Login{}, err
		}
	}
	var hash string
	if patch.Password != nil {
		if err := required("password", *patch.Password); err != nil {
			return domain.Login{}, err
		}
		var err error
		if hash, err = hashSecret(*patch.Password); err != nil {
			return domain.Login{}, err
		}
	}
	var updated domain.Login
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := loginIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: login %s", repository.ErrNotFound, id)
		}
		login := &doc.Logins[idx]
		if patch.Username != nil {
			if err := checkUsername(doc, *patch.Username, id); err != nil {
				return err
			}
		}
		environmentID := login.EnvironmentID
		if patch.EnvironmentID != nil {
			environmentID = *patch.EnvironmentID
		}
		profileID := login.ProfileID
		if patch.ProfileID != nil {
			profileID = optionalID(patch.ProfileID)
		}
		if patch.EnvironmentID != nil || patch.ProfileID != nil {
			if err := checkReferences(doc, environmentID, profileID); err != nil {
				return err
			}
		}
		if patch.Username != nil {
			login.Username = strings.TrimSpace(*patch.Username)
		}
		if hash != "" {
			login.SecretHash = hash
		}
		login.EnvironmentID = environmentID
		login.ProfileID = profileID
		if patch.Active != nil {
			login.Active = *patch.Active
		}
		login.UpdatedAt = s.timestamp()
		updated = *login
		return nil
	})
	if err != nil {
		return domain.Login{}, err
	}
	return updated.Redacted(), nil
}

// DeleteLogin removes a login.
func (s *Store) DeleteLogin(ctx context.Context, id string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := loginIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: login %s", repository.ErrNotFound, id)
		}
		doc.Logins = append(doc.Logins[:idx], doc.Logins[idx+1:]...)
		return nil
	})
	return err
}

func checkUsername(doc *domain.Document, username, selfID string) error {
	for _, login := range doc.Logins {
		if login.ID != selfID && sameName(login.Username, username) {
			return fmt.Errorf("%w: username %q already used", repository.ErrConflict, username)
		}
	}
	return nil
}

func checkReferences(doc *domain.Document, environmentID string, profileID *string) error {
	if environmentIndex(doc, environmentID) < 0 {
		return fmt.Errorf("%w: environment %s", repository.ErrNotFound, environmentID)
	}
	if profileID != nil && profileIndex(doc, *profileID) < 0 {
		return fmt.Errorf("%w: profile %s", repository.ErrNotFound, *profileID)
	}
	return nil
}

func loginIndex(doc *domain.Document, id string) int {
	for i, login := range doc.Logins {
		if login.ID == id {
			return i
		}
	}
	return -1
}
