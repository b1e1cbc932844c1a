package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// NewProfile carries the attributes of a profile being created. A nil Active
// creates an active profile.
type NewProfile struct {
	Name         string
	Description  string
	Capabilities domain.Capabilities
	Active       *bool
}

// ProfilePatch updates selected profile attributes.
type ProfilePatch struct {
	Name         *string
	Description  *string
	Capabilities *domain.Capabilities
	Active       *bool
}

// CreateProfile stores a new profile with a unique name.
func (s *Store) CreateProfile(ctx context.Context, input NewProfile) (domain.Profile, error) {
	if err := required("name", input.Name); err != nil {
		return domain.Profile{}, err
	}
	var created domain.Profile
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		for _, profile := range doc.Profiles {
			if sameName(profile.Name, input.Name) {
				return fmt.Errorf("%w: profile name %q already used", repository.ErrConflict, input.Name)
			}
		}
		now := s.timestamp()
		created = domain.Profile{
			ID:           newID(),
			Name:         strings.TrimSpace(input.Name),
			Description:  strings.TrimSpace(input.Description),
			Capabilities: input.Capabilities,
			Active:       input.Active == nil || *input.Active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		doc.Profiles = append(doc.Profiles, created)
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return created, nil
}

// ListProfiles returns every profile.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Profiles, nil
}

// GetProfile returns a profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	idx := profileIndex(doc, id)
	if idx < 0 {
		return domain.Profile{}, fmt.Errorf("%w: profile %s", repository.ErrNotFound, id)
	}
	return doc.Profiles[idx], nil
}

// UpdateProfile applies patch to the profile.
func (s *Store) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (domain.Profile, error) {
	if patch.Name != nil {
		if err := required("name", *patch.Name); err != nil {
			return domain.Profile{}, err
		}
	}
	var updated domain.Profile
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := profileIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: profile %s", repository.ErrNotFound, id)
		}
		if patch.Name != nil {
			for i, other := range doc.Profiles {
				if i != idx && sameName(other.Name, *patch.Name) {
					return fmt.Errorf("%w: profile name %q already used", repository.ErrConflict, *patch.Name)
				}
			}
		}
		profile := &doc.Profiles[idx]
		if patch.Name != nil {
			profile.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			profile.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Capabilities != nil {
			profile.Capabilities = *patch.Capabilities
		}
		if patch.Active != nil {
			profile.Active = *patch.Active
		}
		profile.UpdatedAt = s.timestamp()
		updated = *profile
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return updated, nil
}

// DeleteProfile removes a profile that no login references.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		idx := profileIndex(doc, id)
		if idx < 0 {
			return fmt.Errorf("%w: profile %s", repository.ErrNotFound, id)
		}
		for _, login := range doc.Logins {
			if login.ProfileID != nil && *login.ProfileID == id {
				return fmt.Errorf("%w: profile %s is assigned to login %s", repository.ErrConflict, id, login.Username)
			}
		}
		doc.Profiles = append(doc.Profiles[:idx], doc.Profiles[idx+1:]...)
		return nil
	})
	return err
}

func profileIndex(doc *domain.Document, id string) int {
	for i, profile := range doc.Profiles {
		if profile.ID == id {
			return i
		}
	}
	return -1
}
