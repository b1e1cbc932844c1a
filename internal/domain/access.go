package domain

import "time"

// Capability names a single permission flag of an access profile.
type Capability string

// Known capabilities.
const (
	CapTestAPIs           Capability = "testarApis"
	CapManageCredentials  Capability = "gerenciarCredenciais"
	CapViewEnvironments   Capability = "verAmbientes"
	CapReconcile          Capability = "sincronizar"
	CapRestart            Capability = "reiniciar"
	CapManageEnvironments Capability = "gerenciarAmbientes"
	CapCreateProfiles     Capability = "criarPerfis"
	CapSingleLookup       Capability = "consultaIndividual"
	CapBatchLookup        Capability = "consultaLote"
)

// Capabilities is the boolean flag bundle of a profile. Unset flags are false.
type Capabilities struct {
	TestAPIs           bool `json:"testarApis"`
	ManageCredentials  bool `json:"gerenciarCredenciais"`
	ViewEnvironments   bool `json:"verAmbientes"`
	Reconcile          bool `json:"sincronizar"`
	Restart            bool `json:"reiniciar"`
	ManageEnvironments bool `json:"gerenciarAmbientes"`
	CreateProfiles     bool `json:"criarPerfis"`
	SingleLookup       bool `json:"consultaIndividual"`
	BatchLookup        bool `json:"consultaLote"`
}

// AllCapabilities grants every flag.
func AllCapabilities() Capabilities {
	return Capabilities{true, true, true, true, true, true, true, true, true}
}

// Allows reports whether the named capability is granted.
func (c Capabilities) Allows(name Capability) bool {
	switch name {
	case CapTestAPIs:
		return c.TestAPIs
	case CapManageCredentials:
		return c.ManageCredentials
	case CapViewEnvironments:
		return c.ViewEnvironments
	case CapReconcile:
		return c.Reconcile
	case CapRestart:
		return c.Restart
	case CapManageEnvironments:
		return c.ManageEnvironments
	case CapCreateProfiles:
		return c.CreateProfiles
	case CapSingleLookup:
		return c.SingleLookup
	case CapBatchLookup:
		return c.BatchLookup
	default:
		return false
	}
}

// Profile is a named bundle of capabilities assignable to a login.
type Profile struct {
	ID           string       `json:"id"`
	Name         string       `json:"nome"`
	Description  string       `json:"descricao,omitempty"`
	Capabilities Capabilities `json:"permissoes"`
	Active       bool         `json:"ativo"`
	CreatedAt    time.Time    `json:"criadoEm"`
	UpdatedAt    time.Time    `json:"atualizadoEm"`
}

// Login is a credential bound to one environment and optionally one profile.
type Login struct {
	ID            string     `json:"id"`
	Username      string     `json:"usuario"`
	SecretHash    string     `json:"senhaHash,omitempty"`
	EnvironmentID string     `json:"ambienteId"`
	ProfileID     *string    `json:"perfilId"`
	Active        bool       `json:"ativo"`
	LastAccessAt  *time.Time `json:"ultimoAcesso,omitempty"`
	CreatedAt     time.Time  `json:"criadoEm"`
	UpdatedAt     time.Time  `json:"atualizadoEm"`
}

// Redacted returns a copy without the secret hash.
func (l Login) Redacted() Login {
	l.SecretHash = ""
	return l
}
