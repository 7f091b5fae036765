package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Prefix = "pbkdf2_sha256$"

// Verifier checks a presented secret against the stored credential.
type Verifier interface {
	Verify(secret, stored string) bool
}

// PBKDF2Verifier accepts "pbkdf2_sha256$<iterations>$<salt hex>$<hash hex>"
// credentials and falls back to a plain comparison for anything else.
type PBKDF2Verifier struct{}

func (PBKDF2Verifier) Verify(secret, stored string) bool {
	if secret == "" || stored == "" {
		return false
	}
	if !strings.HasPrefix(stored, pbkdf2Prefix) {
		return subtle.ConstantTimeCompare([]byte(secret), []byte(stored)) == 1
	}

	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		return false
	}

	dk := pbkdf2.Key([]byte(secret), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(dk, expected) == 1
}

// HashPassword produces a credential string PBKDF2Verifier accepts.
func HashPassword(secret string, salt []byte, iterations int) string {
	dk := pbkdf2.Key([]byte(secret), salt, iterations, sha256.Size, sha256.New)
	return pbkdf2Prefix + strconv.Itoa(iterations) + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(dk)
}
