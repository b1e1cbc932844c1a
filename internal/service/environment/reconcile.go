package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/crypto"
)

// ReconcileReport summarizes a reconcile pass.
type ReconcileReport struct {
	Detected    int                  `json:"detectados"`
	Created     []domain.Environment `json:"criados"`
	Updated     []string             `json:"atualizados"`
	Deactivated []string             `json:"desativados"`
	SyncedAt    time.Time            `json:"sincronizadoEm"`
}

// DefaultCredentials are the owner credentials given to environments created
// by reconcile.
func DefaultCredentials(port int) (user, password string) {
	return fmt.Sprintf("ambiente%d", port), fmt.Sprintf("admin%d", port)
}

// Reconcile aligns the store with the environments found on disk. Existing
// records get their directory refreshed and, only when empty, their
// integration set filled from disk. Unknown directories become new active
// records with default credentials. Active records whose port was not
// detected are deactivated, except the template. Nothing is deleted.
func (s Service) Reconcile(ctx context.Context, det Detector) (ReconcileReport, error) {
	detected := det.Detect(ctx)
	report := ReconcileReport{
		Detected:    len(detected),
		Created:     []domain.Environment{},
		Updated:     []string{},
		Deactivated: []string{},
	}

	_, err := s.store.Update(ctx, func(doc *domain.Document) error {
		now := time.Now().UTC()
		seen := make(map[int]struct{}, len(detected))

		for _, found := range detected {
			seen[found.Port] = struct{}{}
			if idx := indexByPort(doc, found.Port); idx >= 0 {
				env := &doc.Environments[idx]
				changed := env.Directory != found.Directory
				env.Directory = found.Directory
				if len(env.Integrations) == 0 && len(found.Integrations) > 0 {
					env.Integrations = append([]string(nil), found.Integrations...)
					changed = true
				}
				if changed {
					env.UpdatedAt = now
					report.Updated = append(report.Updated, env.ID)
				}
				continue
			}

			user, password := DefaultCredentials(found.Port)
			hash, err := crypto.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash default password: %w", err)
			}
			env := domain.Environment{
				ID:           uuid.NewString(),
				Name:         uniqueName(doc, found),
				Port:         found.Port,
				Directory:    found.Directory,
				OwnerUser:    user,
				SecretHash:   string(hash),
				Integrations: append([]string{}, found.Integrations...),
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			doc.Environments = append(doc.Environments, env)
			report.Created = append(report.Created, env.Redacted())
		}

		for i := range doc.Environments {
			env := &doc.Environments[i]
			if _, ok := seen[env.Port]; ok || !env.Active || env.Port == s.cfg.TemplatePort {
				continue
			}
			env.Active = false
			env.UpdatedAt = now
			report.Deactivated = append(report.Deactivated, env.ID)
		}

		doc.LastSync = &now
		report.SyncedAt = now
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	for _, env := range report.Created {
		s.logger.WarnContext(ctx, "environment registered from disk with default credentials", "environment_id", env.ID, "port", env.Port, "owner", env.OwnerUser)
	}
	s.logger.InfoContext(ctx, "reconcile finished", "detected", report.Detected, "created", len(report.Created), "updated", len(report.Updated), "deactivated", len(report.Deactivated))
	return report, nil
}

func indexByPort(doc *domain.Document, port int) int {
	for i, env := range doc.Environments {
		if env.Port == port {
			return i
		}
	}
	return -1
}

// uniqueName picks the default display name, falling back to the directory
// name when another environment already uses it.
func uniqueName(doc *domain.Document, found domain.DetectedEnvironment) string {
	candidates := []string{found.Name, detector.DefaultName(found.Port), found.Directory}
	for _, name := range candidates {
		if name != "" && !nameTaken(doc, name) {
			return name
		}
	}
	return fmt.Sprintf("%s (%s)", found.Directory, uuid.NewString()[:8])
}

func nameTaken(doc *domain.Document, name string) bool {
	for _, env := range doc.Environments {
		if equalFold(env.Name, name) {
			return true
		}
	}
	return false
}
