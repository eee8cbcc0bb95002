// Package doc defines the value types produced by the help-archive
// document pipeline: topics, archive references, and their stable
// identifiers in the vector store.
package doc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxPayloadTextChars bounds the topic text stored in a point payload.
const MaxPayloadTextChars = 50000

// Topic is the unit of indexed text derived from one converted document
// within an archive. Its identifier is a pure function of
// (version, language, path), so reindexing the same source yields the
// same point id.
type Topic struct {
	path     string
	title    string
	body     string
	version  string
	language string
}

// NewTopic creates a Topic. The path is the file's path relative to the
// archive root.
func NewTopic(path, title, body, version, language string) Topic {
	return Topic{
		path:     path,
		title:    title,
		body:     body,
		version:  version,
		language: language,
	}
}

// Path returns the topic's source path relative to the archive root.
func (t Topic) Path() string { return t.path }

// Title returns the topic title.
func (t Topic) Title() string { return t.title }

// Body returns the Markdown body.
func (t Topic) Body() string { return t.body }

// Version returns the help-bundle version tag.
func (t Topic) Version() string { return t.version }

// Language returns the two-letter language tag, or empty.
func (t Topic) Language() string { return t.language }

// PointID returns the stable numeric identifier for this topic.
func (t Topic) PointID() uint64 {
	return PointID(t.version, t.language, t.path)
}

// PayloadText returns the body bounded to MaxPayloadTextChars. The cut
// lands on a rune boundary; the stored text is always valid UTF-8.
func (t Topic) PayloadText() string {
	if len(t.body) <= MaxPayloadTextChars {
		return t.body
	}
	cut := MaxPayloadTextChars
	for cut > 0 && !utf8.RuneStart(t.body[cut]) {
		cut--
	}
	return t.body[:cut]
}

// PointID derives the stable point identifier for a topic key. The key
// string "version|language|path" is hashed and folded into the positive
// int64 space, matching ids already present in deployed collections.
func PointID(version, language, path string) uint64 {
	return HashID(fmt.Sprintf("%s|%s|%s", version, language, path))
}

// HashID folds an arbitrary key into the positive int64 id space.
func HashID(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	n, err := strconv.ParseUint(digest[:14], 16, 64)
	if err != nil {
		// 14 hex chars always parse; keep the compiler honest.
		return 0
	}
	return n % (1 << 63)
}

// TitleFromMarkdown derives a display title from converted Markdown:
// the first non-empty line with leading heading markers stripped, or
// fallback when the text has no usable line.
func TitleFromMarkdown(markdown, fallback string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return fallback
}
