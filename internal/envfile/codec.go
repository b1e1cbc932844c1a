package envfile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// Credential is the logical login/password pair of one integration. Nil
// fields are absent.
type Credential struct {
	Login    *string `json:"login,omitempty"`
	Password *string `json:"senha,omitempty"`
}

// Read extracts the integration's credential. The primary key wins over the
// alternate; within a key the first line wins.
func Read(content, integrationID string) (Credential, error) {
	entry, ok := catalog.Lookup(integrationID)
	if !ok {
		return Credential{}, unknownIntegration(integrationID)
	}
	file := Parse(content)
	var cred Credential
	if value, ok := lookupPair(file, entry.Login); ok {
		cred.Login = &value
	}
	if value, ok := lookupPair(file, entry.Password); ok {
		cred.Password = &value
	}
	return cred, nil
}

// Write upserts the supplied fields and returns the new content.
func Write(content, integrationID string, cred Credential) (string, error) {
	if cred.Login == nil && cred.Password == nil {
		return "", fmt.Errorf("%w: login or password required", repository.ErrInvalidArgument)
	}
	entry, ok := catalog.Lookup(integrationID)
	if !ok {
		return "", unknownIntegration(integrationID)
	}
	file := Parse(content)
	if cred.Login != nil {
		file.Upsert(*cred.Login, entry.Login.Primary, entry.Login.Alternate)
	}
	if cred.Password != nil {
		file.Upsert(*cred.Password, entry.Password.Primary, entry.Password.Alternate)
	}
	return file.String(), nil
}

// Filter drops every line that does not belong to the integration. Blank and
// comment lines stay; a drop prefix overrides a keep prefix.
func Filter(content, integrationID string) (string, error) {
	entry, ok := catalog.Lookup(integrationID)
	if !ok {
		return "", unknownIntegration(integrationID)
	}
	file := Parse(content)
	file.Retain(func(line Line) bool {
		switch line.Kind {
		case LineBlank, LineComment:
			return true
		}
		name := line.Key
		if line.Kind == LineInvalid {
			name = strings.TrimSpace(line.Raw)
		}
		return hasAnyPrefix(name, entry.KeepPrefixes) && !hasAnyPrefix(name, entry.DropPrefixes)
	})
	return file.String(), nil
}

func lookupPair(file *File, keys catalog.KeyPair) (string, bool) {
	if value, ok := file.Lookup(keys.Primary); ok {
		return value, true
	}
	if keys.Alternate != "" {
		return file.Lookup(keys.Alternate)
	}
	return "", false
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func unknownIntegration(id string) error {
	return fmt.Errorf("%w: integration %q has no credential mapping", repository.ErrInvalidArgument, id)
}

// encodeValue renders value so that Line.Value decodes it back unchanged.
// Values without blanks, quotes, '#' or '$' are written bare; everything
// else goes inside double quotes with backslash escapes.
func encodeValue(value string) string {
	if writesBare(value) {
		return value
	}
	return `"` + quoteEscaper.Replace(value) + `"`
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func writesBare(value string) bool {
	for _, r := range value {
		if unicode.IsSpace(r) || strings.ContainsRune(`"'#$`, r) {
			return false
		}
	}
	return true
}
