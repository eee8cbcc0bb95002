package embedding

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsControlBytes(t *testing.T) {
	in := "a\x00b\x01c\x1fd"
	assert.Equal(t, "a b c d", Sanitize(in))
}

func TestSanitizeKeepsWhitespaceControls(t *testing.T) {
	in := "line1\nline2\r\n\tindented"
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitizeCleanStringUntouched(t *testing.T) {
	in := "Справка по функции СтрНайти"
	assert.Equal(t, in, Sanitize(in))
}

func TestTruncate(t *testing.T) {
	out, did := Truncate("hello", 3)
	assert.True(t, did)
	assert.Equal(t, "hel", out)

	out, did = Truncate("hello", 10)
	assert.False(t, did)
	assert.Equal(t, "hello", out)

	out, did = Truncate("hello", 0)
	assert.False(t, did, "zero limit disables truncation")
	assert.Equal(t, "hello", out)
}

func TestTruncateNeverSplitsRune(t *testing.T) {
	// Byte 4 is the second half of the second "д"; the cut backs up to
	// the rune boundary instead of emitting invalid UTF-8.
	out, did := Truncate("xдд", 4)
	assert.True(t, did)
	assert.Equal(t, "xд", out)
	assert.True(t, utf8.ValidString(out))
}
