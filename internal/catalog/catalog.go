// Package catalog holds the fixed set of partner bank integrations and the
// credential key layout each of them uses.
package catalog

import (
	"sort"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
)

// KeyPair names the primary credential key and its accepted alternate.
type KeyPair struct {
	Primary   string
	Alternate string
}

// Entry describes one integration.
type Entry struct {
	ID           string
	Name         string
	Directory    string
	Login        KeyPair
	Password     KeyPair
	KeepPrefixes []string
	DropPrefixes []string
}

// SharedPrefixes are kept in every integration's filtered credential file.
var SharedPrefixes = []string{"PORT", "NODE_ENV", "APP_", "LOG_LEVEL", "TZ"}

var entries = map[string]Entry{
	"alpha": {
		ID:           "alpha",
		Name:         "Alpha Crédito",
		Directory:    "alpha",
		Login:        KeyPair{Primary: "ALPHA_LOGIN", Alternate: "ALPHA_USER"},
		Password:     KeyPair{Primary: "ALPHA_PASSWORD", Alternate: "ALPHA_SENHA"},
		KeepPrefixes: withShared("ALPHA_"),
		DropPrefixes: []string{"ALPHA_ADMIN_"},
	},
	"bravo": {
		ID:           "bravo",
		Name:         "Bravo Financeira",
		Directory:    "bravo",
		Login:        KeyPair{Primary: "BRAVO_USUARIO", Alternate: "BRAVO_LOGIN"},
		Password:     KeyPair{Primary: "BRAVO_SENHA", Alternate: "BRAVO_PASSWORD"},
		KeepPrefixes: withShared("BRAVO_"),
		DropPrefixes: []string{"BRAVO_ADMIN_"},
	},
	"confianca": {
		ID:           "confianca",
		Name:         "Confiança Bank",
		Directory:    "confiança",
		Login:        KeyPair{Primary: "CONFIANCA_CLIENT_ID", Alternate: "CONFIANCA_LOGIN"},
		Password:     KeyPair{Primary: "CONFIANCA_CLIENT_SECRET", Alternate: "CONFIANCA_SENHA"},
		KeepPrefixes: withShared("CONFIANCA_"),
		DropPrefixes: []string{"CONFIANCA_ADMIN_"},
	},
}

func withShared(own string) []string {
	return append([]string{own}, SharedPrefixes...)
}

// Lookup returns the entry for id.
func Lookup(id string) (Entry, bool) {
	entry, ok := entries[id]
	return entry, ok
}

// IDs returns every integration id in ascending order.
func IDs() []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns every entry ordered by id.
func Entries() []Entry {
	ids := IDs()
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, entries[id])
	}
	return out
}

// Integrations projects the catalog into persisted records.
func Integrations() []domain.Integration {
	out := make([]domain.Integration, 0, len(entries))
	for _, entry := range Entries() {
		out = append(out, domain.Integration{ID: entry.ID, Name: entry.Name, Directory: entry.Directory, Active: true})
	}
	return out
}

// Known reports whether every id belongs to the catalog; it returns the first
// unknown id otherwise.
func Known(ids []string) (string, bool) {
	for _, id := range ids {
		if _, ok := entries[id]; !ok {
			return id, false
		}
	}
	return "", true
}
