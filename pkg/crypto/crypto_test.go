package crypto

import (
	"bytes"
	"testing"
)

func TestSealOpen(t *testing.T) {
	sealed, err := Seal("chave", []byte(`{"cpf":"52998224725"}`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("52998224725")) {
		t.Fatalf("sealed payload leaks plaintext")
	}
	plain, err := Open("chave", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(plain) != `{"cpf":"52998224725"}` {
		t.Fatalf("unexpected plaintext %s", plain)
	}
	if _, err := Open("outra", sealed); err == nil {
		t.Fatalf("expected wrong key to fail")
	}
	if _, err := Open("chave", sealed[:4]); err == nil {
		t.Fatalf("expected truncated payload to fail")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("segredo")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "segredo"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "outro"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3gredo")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !IsPasswordHash(string(hash)) {
		t.Fatalf("expected %q to be recognised as a hash", hash)
	}
	if err := ComparePassword(hash, "s3gredo"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "errado"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	for _, plain := range []string{"admin", "$2nothash", ""} {
		if IsPasswordHash(plain) {
			t.Fatalf("plaintext %q reported as hash", plain)
		}
	}
}
