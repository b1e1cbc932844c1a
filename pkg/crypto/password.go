// Package crypto wraps the hashing and sealing primitives used for stored
// credentials and queued job payloads.
package crypto

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt cost for login secrets.
const PasswordCost = bcrypt.DefaultCost

// HashPassword hashes plaintext using bcrypt.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}

// IsPasswordHash reports whether value is a well-formed bcrypt hash, as
// opposed to a plaintext secret supplied through configuration.
func IsPasswordHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}
