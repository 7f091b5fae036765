package ledger

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeName trims and collapses internal whitespace runs to one space.
func NormalizeName(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeRole is the comparison key for role uniqueness.
func NormalizeRole(role string) string {
	return cases.Fold().String(NormalizeName(role))
}

// NormalizeDeltaName is the comparison key for named deltas: all whitespace
// removed, case folded.
func NormalizeDeltaName(name string) string {
	return cases.Fold().String(whitespaceRun.ReplaceAllString(strings.TrimSpace(name), ""))
}

// IsHTTPURL reports whether u has an http or https scheme.
func IsHTTPURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
