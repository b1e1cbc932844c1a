package domain

import (
	"encoding/json"
	"time"
)

// Batch job states.
const (
	BatchProcessing = "processando"
	BatchDone       = "concluido"
)

// Subject identifies the person a CLT simulation is requested for.
type Subject struct {
	CPF       string `json:"cpf"`
	Name      string `json:"nome,omitempty"`
	BirthDate string `json:"dataNascimento,omitempty"`
	Phone     string `json:"telefone,omitempty"`
}

// LookupOutcome is the answer of one partner bank for one subject.
type LookupOutcome struct {
	Integration string          `json:"banco"`
	Success     bool            `json:"sucesso"`
	Data        json.RawMessage `json:"dados,omitempty"`
	Error       string          `json:"erro,omitempty"`
}

// BatchResult collects every bank outcome for one input record.
type BatchResult struct {
	Index    int             `json:"indice"`
	Subject  Subject         `json:"entrada"`
	Success  bool            `json:"sucesso"`
	Outcomes []LookupOutcome `json:"resultados"`
}

// BatchJob is an in-flight or completed batch of CLT simulations.
type BatchJob struct {
	ID            string        `json:"id"`
	EnvironmentID string        `json:"ambienteId,omitempty"`
	Status        string        `json:"status"`
	Integrations  []string      `json:"bancos"`
	Inputs        []Subject     `json:"entradas,omitempty"`
	Total         int           `json:"total"`
	Processed     int           `json:"processados"`
	Succeeded     int           `json:"sucessos"`
	Failed        int           `json:"falhas"`
	Results       []BatchResult `json:"resultados"`
	CreatedAt     time.Time     `json:"criadoEm"`
	FinishedAt    *time.Time    `json:"finalizadoEm,omitempty"`
}
