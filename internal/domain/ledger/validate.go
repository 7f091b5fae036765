package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
)

const (
	MaxRoleLen      = 64
	MaxDeltaNameLen = 32
	// MaxAmount bounds a single adjustment or named delta in either direction.
	MaxAmount = 1_000_000_000_000
)

// ValidateRole checks a role label after whitespace normalization.
func ValidateRole(role string) error {
	n := utf8.RuneCountInString(NormalizeName(role))
	if n == 0 || n > MaxRoleLen {
		return apperrors.NewValidationError("role", "role must be 1..64 characters")
	}
	return nil
}

// ValidateDeltaName checks a named delta label.
func ValidateDeltaName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxDeltaNameLen || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return apperrors.NewValidationError("name", "name must be 1..32 characters without spaces")
	}
	return nil
}

// ValidateDeltaValue rejects zero and out-of-range deltas.
func ValidateDeltaValue(v int64) error {
	if v == 0 {
		return apperrors.NewValidationError("value", "zero makes no sense")
	}
	if v > MaxAmount || v < -MaxAmount {
		return apperrors.NewValidationError("value", "the number must be within ±1000000000000")
	}
	return nil
}

// ValidateRoleLink accepts an empty link or an http(s) URL.
func ValidateRoleLink(link string) error {
	if link == "" || IsHTTPURL(link) {
		return nil
	}
	return apperrors.NewValidationError("link", "only http and https links are allowed")
}
