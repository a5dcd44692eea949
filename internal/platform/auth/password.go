package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize = 16
	KeySize  = 32
)

// GenerateSalt returns SaltSize random bytes, base64 encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// HashPassword derives a PBKDF2-HMAC-SHA256 key from password and the
// base64 salt. The result is base64 encoded.
func HashPassword(password, salt string, iterations int) (string, error) {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), rawSalt, iterations, KeySize, sha256.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword recomputes the hash and compares it in constant time.
func VerifyPassword(password, salt, hash string, iterations int) bool {
	computed, err := HashPassword(password, salt, iterations)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// GenerateOpaqueToken returns n random bytes, base64 encoded. Used for
// refresh tokens.
func GenerateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
