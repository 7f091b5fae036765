package riddle

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldReplacer = strings.NewReplacer("ё", "е", "Ё", "е")

// Normalize folds case and diacritics and collapses whitespace so that
// answers compare the way people type them.
func Normalize(s string) string {
	s = foldReplacer.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Matches reports whether text contains answer. Multi-word answers match as
// substrings; single words must stand alone.
func Matches(answer, text string) bool {
	a, t := Normalize(answer), Normalize(text)
	if a == "" || t == "" {
		return false
	}
	if strings.Contains(a, " ") {
		return strings.Contains(t, a)
	}

	for offset := 0; offset <= len(t); {
		i := strings.Index(t[offset:], a)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(a)
		if !wordRuneBefore(t, start) && !wordRuneAfter(t, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(t[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func wordRuneBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordRuneAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}
