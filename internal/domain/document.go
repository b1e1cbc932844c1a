package domain

import "time"

// SchemaVersion is the current layout version of Document.
const SchemaVersion = 3

// Document is the single persisted state of the administration system.
type Document struct {
	SchemaVersion int           `json:"versao"`
	Revision      int64         `json:"revisao"`
	LastSync      *time.Time    `json:"ultimaSincronizacao"`
	Environments  []Environment `json:"ambientes"`
	Profiles      []Profile     `json:"perfis"`
	Logins        []Login       `json:"logins"`
	Integrations  []Integration `json:"bancosDisponiveis"`
}
