package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters other than newlines
// and tabs, and caps the result at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxLen])
	}
	return strings.TrimSpace(cleaned)
}
