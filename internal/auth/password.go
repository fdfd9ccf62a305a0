// ABOUTME: PBKDF2-SHA256 password hashing with per-user random salts
// ABOUTME: Hashes and salts are hex encoded for storage

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes = 16
	keyBytes  = 32
)

// NewSalt returns a random hex encoded salt.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword derives the hex encoded PBKDF2-SHA256 key for password and salt.
func HashPassword(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyBytes, sha256.New)
	return hex.EncodeToString(key)
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, salt, hash string, iterations int) bool {
	candidate := HashPassword(password, salt, iterations)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}
