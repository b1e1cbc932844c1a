package envfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

const templateEnv = `# shared
PORT=4000
NODE_ENV=production

# alpha
ALPHA_USER=legacy-user
ALPHA_PASSWORD=old
ALPHA_ADMIN_TOKEN=root-only
ALPHA_API_URL=https://alpha.example
# bravo
BRAVO_USUARIO=bravo-user
BRAVO_SENHA=bravo-pass
CONFIANCA_CLIENT_ID=conf-id
CONFIANCA_SENHA=conf-secret
export APP_NAME=clt
not a pair
`

func strPtr(s string) *string { return &s }

func TestReadUsesAlternateWhenPrimaryMissing(t *testing.T) {
	cred, err := Read(templateEnv, "alpha")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cred.Login == nil || *cred.Login != "legacy-user" {
		t.Fatalf("expected login from ALPHA_USER, got %v", cred.Login)
	}
	if cred.Password == nil || *cred.Password != "old" {
		t.Fatalf("expected password old, got %v", cred.Password)
	}
}

func TestReadAbsentFieldsAreNil(t *testing.T) {
	cred, err := Read("PORT=1\n", "bravo")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cred.Login != nil || cred.Password != nil {
		t.Fatalf("expected empty credential, got %+v", cred)
	}
}

func TestReadPrefersPrimaryOverEarlierAlternate(t *testing.T) {
	content := "BRAVO_LOGIN=alt\nBRAVO_USUARIO=primary\n"
	cred, err := Read(content, "bravo")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if *cred.Login != "primary" {
		t.Fatalf("expected primary key to win, got %q", *cred.Login)
	}
}

func TestWriteRoundTripPreservesUnrelatedLines(t *testing.T) {
	values := []string{"simple", "p@ss w0rd#1", "it's", `a"b`, "$HOME", "", "0123", `mix'ed"$\x`, "ünïcode"}
	for _, id := range catalog.IDs() {
		for _, value := range values {
			login, password := "user-"+value, value
			out, err := Write(templateEnv, id, Credential{Login: &login, Password: &password})
			if err != nil {
				t.Fatalf("write %s %q: %v", id, value, err)
			}
			cred, err := Read(out, id)
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			if cred.Login == nil || *cred.Login != login || cred.Password == nil || *cred.Password != password {
				t.Fatalf("round trip %s %q: got login=%v password=%v\n%s", id, value, cred.Login, cred.Password, out)
			}
			assertUnrelatedPreserved(t, id, templateEnv, out)
		}
	}
}

func assertUnrelatedPreserved(t *testing.T, id, before, after string) {
	t.Helper()
	entry, _ := catalog.Lookup(id)
	owned := map[string]bool{
		entry.Login.Primary: true, entry.Login.Alternate: true,
		entry.Password.Primary: true, entry.Password.Alternate: true,
	}
	filter := func(content string) []string {
		var kept []string
		for _, line := range Parse(content).Lines() {
			if line.Kind == LinePair && owned[line.Key] {
				continue
			}
			kept = append(kept, line.Raw)
		}
		return kept
	}
	want, got := filter(before), filter(after)
	if strings.Join(want, "\n") != strings.Join(got, "\n") {
		t.Fatalf("unrelated lines changed for %s:\nwant %q\ngot  %q", id, want, got)
	}
}

func TestWriteReplacesInPlaceAndAppendsMissing(t *testing.T) {
	out, err := Write("ALPHA_USER=a\n# keep\n", "alpha", Credential{Login: strPtr("b"), Password: strPtr("c")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "ALPHA_USER=b\n# keep\nALPHA_PASSWORD=c\n"
	if out != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out, want)
	}
}

func TestWriteNormalizesCRLF(t *testing.T) {
	out, err := Write("PORT=1\r\nALPHA_LOGIN=x\r\n", "alpha", Credential{Login: strPtr("y")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out != "PORT=1\nALPHA_LOGIN=y\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWriteValidation(t *testing.T) {
	if _, err := Write("", "alpha", Credential{}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without fields, got %v", err)
	}
	if _, err := Write("", "zeta", Credential{Login: strPtr("x")}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown integration, got %v", err)
	}
}

func TestWriteRoundTripsAwkwardValues(t *testing.T) {
	values := []string{
		`abc\`, `\`, `it's"`, `"`, `'`, `"q"`, `'single'`, `\"`, `end\\`,
		" lead", "trail ", "\t", "p#ss word", "#", `a\nb`, "a\nb", "x\r\ny",
		"x$HOME", "${ALPHA_USER}", `a"b'c\`, "日本 語", "=", "k=v",
	}
	for _, value := range values {
		out, err := Write(templateEnv, "alpha", Credential{Login: strPtr("user"), Password: strPtr(value)})
		if err != nil {
			t.Fatalf("write %q: %v", value, err)
		}
		cred, err := Read(out, "alpha")
		if err != nil {
			t.Fatalf("read back %q: %v", value, err)
		}
		if cred.Password == nil || *cred.Password != value {
			t.Fatalf("round trip %q: got %v\n%s", value, cred.Password, out)
		}
		if got := strings.Count(out, "\n"); got != strings.Count(templateEnv, "\n") {
			t.Fatalf("value %q changed the line count:\n%s", value, out)
		}
	}
}

func TestWriteKeepsExportPrefix(t *testing.T) {
	out, err := Write("export ALPHA_LOGIN=old\n  ALPHA_PASSWORD = x # note\n", "alpha", Credential{Login: strPtr("novo"), Password: strPtr("y z")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "export ALPHA_LOGIN=novo\n  ALPHA_PASSWORD =\"y z\"\n"
	if out != want {
		t.Fatalf("unexpected output %q, want %q", out, want)
	}
}

func TestWriteThenReadWithEarlierAlternate(t *testing.T) {
	out, err := Write("BRAVO_LOGIN=alt\nBRAVO_USUARIO=old\n", "bravo", Credential{Login: strPtr("novo")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out != "BRAVO_LOGIN=alt\nBRAVO_USUARIO=novo\n" {
		t.Fatalf("expected the primary line to be replaced, got %q", out)
	}
	cred, err := Read(out, "bravo")
	if err != nil || *cred.Login != "novo" {
		t.Fatalf("expected the written login back, got %v err=%v", cred.Login, err)
	}
}

func TestFilterKeepsOwnAndSharedKeys(t *testing.T) {
	out, err := Filter(templateEnv, "alpha")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	want := strings.Join([]string{
		"# shared",
		"PORT=4000",
		"NODE_ENV=production",
		"",
		"# alpha",
		"ALPHA_USER=legacy-user",
		"ALPHA_PASSWORD=old",
		"ALPHA_API_URL=https://alpha.example",
		"# bravo",
		"export APP_NAME=clt",
		"",
	}, "\n")
	if out != want {
		t.Fatalf("unexpected filter output:\n%s\nwant:\n%s", out, want)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	inputs := []string{templateEnv, "", "\n\n", "ALPHA_ADMIN_X=1\nALPHA_X=2\r\nrandom\n#c"}
	for _, id := range catalog.IDs() {
		for _, input := range inputs {
			once, err := Filter(input, id)
			if err != nil {
				t.Fatalf("filter: %v", err)
			}
			twice, err := Filter(once, id)
			if err != nil {
				t.Fatalf("filter twice: %v", err)
			}
			if once != twice {
				t.Fatalf("filter not idempotent for %s:\n%q\n%q", id, once, twice)
			}
		}
	}
}

func TestValuesDecodesQuotesAndComments(t *testing.T) {
	values := Parse("A='x y'\nB=\"q\\\"z\"\nC=plain # note\nA=second\n").Values()
	if values["A"] != "x y" || values["B"] != `q"z` || values["C"] != "plain" {
		t.Fatalf("unexpected values: %#v", values)
	}
}
