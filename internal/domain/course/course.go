// Package course canonicalizes transcript course codes.
package course

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// languageSuffix marks the English-taught section of a course, e.g. MAT103E.
const languageSuffix = 'E'

// Normalize trims raw, converts it to NFC and drops a trailing language
// suffix "E" when it directly follows a decimal digit, so "MAT103E" and
// "MAT103" share one key. Anything else passes through unchanged.
func Normalize(raw string) string {
	code := norm.NFC.String(strings.TrimSpace(raw))

	runes := []rune(code)
	n := len(runes)
	if n > 1 && runes[n-1] == languageSuffix && unicode.IsDigit(runes[n-2]) {
		return string(runes[:n-1])
	}
	return code
}
