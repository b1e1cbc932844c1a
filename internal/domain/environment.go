package domain

import "time"

// Environment is a provisioned deployment unit bound to a port and a directory.
type Environment struct {
	ID           string    `json:"id"`
	Name         string    `json:"nome"`
	Port         int       `json:"porta"`
	Directory    string    `json:"diretorio"`
	OwnerUser    string    `json:"usuario"`
	SecretHash   string    `json:"senhaHash,omitempty"`
	Integrations []string  `json:"bancosPermitidos"`
	PipelineID   *string   `json:"pipelineId"`
	Active       bool      `json:"ativo"`
	CreatedAt    time.Time `json:"criadoEm"`
	UpdatedAt    time.Time `json:"atualizadoEm"`
}

// Redacted returns a copy safe to hand across a trust boundary.
func (e Environment) Redacted() Environment {
	e.SecretHash = ""
	e.Integrations = append([]string(nil), e.Integrations...)
	return e
}

// Permits reports whether the integration is in the permitted set.
func (e Environment) Permits(integrationID string) bool {
	for _, id := range e.Integrations {
		if id == integrationID {
			return true
		}
	}
	return false
}

// Integration is one entry of the partner bank catalog.
type Integration struct {
	ID        string `json:"id"`
	Name      string `json:"nome"`
	Directory string `json:"pasta"`
	Active    bool   `json:"ativo"`
}

// DetectedEnvironment is an environment directory found on disk.
type DetectedEnvironment struct {
	Name              string   `json:"nome"`
	Port              int      `json:"porta"`
	Directory         string   `json:"diretorio"`
	Integrations      []string `json:"bancos"`
	HasCredentialFile bool     `json:"temEnv"`
}
