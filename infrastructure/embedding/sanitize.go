package embedding

import (
	"strings"
	"unicode/utf8"
)

// Sanitize strips control bytes in the range 0x00-0x1F except newline,
// carriage return, and tab, replacing each with a space. Embedding
// services reject raw control characters that survive HTML conversion.
func Sanitize(s string) string {
	if !hasControlBytes(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hasControlBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			return true
		}
	}
	return false
}

// Truncate bounds s to max bytes without splitting a rune. Returns the
// bounded string and whether truncation occurred.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
