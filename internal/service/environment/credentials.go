package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// CredentialUpdate reports a credential change.
type CredentialUpdate struct {
	Integration  string                `json:"banco"`
	Verification *partner.VerifyResult `json:"verificacao,omitempty"`
}

// GetCredential reads the integration's credential from the environment's
// credential file. A missing file yields an empty credential.
func (s Service) GetCredential(ctx context.Context, environmentID, integrationID string) (envfile.Credential, error) {
	env, err := s.permittedEnvironment(ctx, environmentID, integrationID)
	if err != nil {
		return envfile.Credential{}, err
	}
	content, err := s.readCredentialFile(env)
	if err != nil {
		return envfile.Credential{}, err
	}
	return envfile.Read(content, integrationID)
}

// UpdateCredential writes the integration's credential into the environment's
// credential file. With verify set and both fields present the partner is
// asked first; a rejection or an unreachable partner blocks the update with
// ErrVerificationFailed.
func (s Service) UpdateCredential(ctx context.Context, environmentID, integrationID string, cred envfile.Credential, verify bool) (CredentialUpdate, error) {
	if cred.Login == nil && cred.Password == nil {
		return CredentialUpdate{}, fmt.Errorf("%w: login or password required", repository.ErrInvalidArgument)
	}
	env, err := s.permittedEnvironment(ctx, environmentID, integrationID)
	if err != nil {
		return CredentialUpdate{}, err
	}
	content, err := s.readCredentialFile(env)
	if err != nil {
		return CredentialUpdate{}, err
	}

	update := CredentialUpdate{Integration: integrationID}
	if verify && cred.Login != nil && cred.Password != nil {
		result, err := s.verify(ctx, integrationID, *cred.Login, *cred.Password, envfile.Parse(content).Values())
		update.Verification = &result
		if err != nil {
			return update, err
		}
	}

	next, err := envfile.Write(content, integrationID, cred)
	if err != nil {
		return update, err
	}
	path := s.credentialPath(env)
	mode := fs.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := dirsync.WriteFileAtomic(path, []byte(next), mode); err != nil {
		return update, fmt.Errorf("%w: write %s: %v", repository.ErrFilesystem, path, err)
	}
	s.logger.InfoContext(ctx, "credential updated", "environment_id", env.ID, "integration", integrationID, "verified", update.Verification != nil)
	return update, nil
}

func (s Service) verify(ctx context.Context, integrationID, login, password string, envVars map[string]string) (partner.VerifyResult, error) {
	if s.verifier == nil {
		result := partner.VerifyResult{Details: "verification unavailable"}
		return result, fmt.Errorf("%w: %s", repository.ErrVerificationFailed, result.Details)
	}
	result, err := s.verifier.Verify(ctx, integrationID, login, password, envVars)
	if err != nil {
		s.logger.WarnContext(ctx, "credential verification unavailable", "integration", integrationID, "error", err)
		result = partner.VerifyResult{Details: err.Error()}
		return result, fmt.Errorf("%w: %v", repository.ErrVerificationFailed, err)
	}
	if !result.Success {
		return result, fmt.Errorf("%w: %s", repository.ErrVerificationFailed, result.Details)
	}
	return result, nil
}

func (s Service) permittedEnvironment(ctx context.Context, environmentID, integrationID string) (domain.Environment, error) {
	if environmentID == "" {
		return domain.Environment{}, errEnvironmentIDRequired
	}
	if integrationID == "" {
		return domain.Environment{}, errIntegrationRequired
	}
	env, err := s.store.GetEnvironment(ctx, environmentID)
	if err != nil {
		return domain.Environment{}, err
	}
	if err := s.checkPermitted(env, integrationID); err != nil {
		return domain.Environment{}, err
	}
	return env, nil
}

func (s Service) credentialPath(env domain.Environment) string {
	return filepath.Join(s.layout.Path(env.Directory), detector.CredentialFile)
}

func (s Service) readCredentialFile(env domain.Environment) (string, error) {
	path := s.credentialPath(env)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", repository.ErrFilesystem, path, err)
	}
	return string(data), nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
