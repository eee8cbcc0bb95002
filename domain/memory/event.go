// Package memory defines the event and snippet value types recorded by
// the three-tier memory subsystem.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a memory event.
type Kind string

// Event kinds.
const (
	KindTopicView   Kind = "topic_view"
	KindSnippetSave Kind = "snippet_save"
	KindExchange    Kind = "exchange"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindTopicView, KindSnippetSave, KindExchange:
		return true
	}
	return false
}

// Event is a single memory record. It is written synchronously to the
// short and medium tiers and to the long tier when embedding succeeds.
type Event struct {
	id        string
	kind      Kind
	timestamp time.Time
	domain    string
	payload   map[string]string
}

// NewEvent creates an Event with a fresh identifier and the current
// time. The payload map is copied.
func NewEvent(kind Kind, domain string, payload map[string]string) Event {
	return ReconstructEvent(uuid.NewString(), kind, time.Now().UTC(), domain, payload)
}

// ReconstructEvent rebuilds an Event from persisted fields.
func ReconstructEvent(id string, kind Kind, timestamp time.Time, domain string, payload map[string]string) Event {
	p := make(map[string]string, len(payload))
	for k, v := range payload {
		p[k] = v
	}
	return Event{
		id:        id,
		kind:      kind,
		timestamp: timestamp,
		domain:    domain,
		payload:   p,
	}
}

// ID returns the event identifier.
func (e Event) ID() string { return e.id }

// Kind returns the event kind.
func (e Event) Kind() Kind { return e.kind }

// Timestamp returns the event creation time.
func (e Event) Timestamp() time.Time { return e.timestamp }

// Domain returns the long-tier domain tag.
func (e Event) Domain() string { return e.domain }

// Payload returns a copy of the free-form payload.
func (e Event) Payload() map[string]string {
	p := make(map[string]string, len(e.payload))
	for k, v := range e.payload {
		p[k] = v
	}
	return p
}

// Field returns a single payload field, or empty.
func (e Event) Field(key string) string { return e.payload[key] }

// Summary derives the text embedded for the long tier.
func (e Event) Summary() string {
	parts := []string{}
	if t := e.payload["title"]; t != "" {
		parts = append(parts, t)
	}
	if q := e.payload["query"]; q != "" {
		parts = append(parts, q)
	}
	if tags := e.payload["tags"]; tags != "" {
		parts = append(parts, tags)
	}
	if len(parts) == 0 {
		parts = append(parts, string(e.kind))
	}
	return "1C Help: " + strings.Join(parts, " | ")
}

// PointID returns the stable long-tier identifier for the event.
func (e Event) PointID() uint64 {
	return hashID(e.domain + "_" + e.id)
}

// SnippetClass distinguishes executable examples from prose references.
type SnippetClass string

// Snippet classes.
const (
	ClassSnippet   SnippetClass = "snippet"
	ClassReference SnippetClass = "reference"
)

// Snippet is a code+description pair contributed by users or loaded
// from a snippets directory. Snippets are content-addressed by a hash
// of title+code so reingest updates rather than duplicates.
type Snippet struct {
	title       string
	description string
	code        string
	domain      string
	class       SnippetClass
}

// NewSnippet creates a Snippet, classifying it from its content when
// class is empty.
func NewSnippet(title, description, code, domain string, class SnippetClass) Snippet {
	if class == "" {
		class = Classify(title, description, code)
	}
	return Snippet{
		title:       title,
		description: description,
		code:        code,
		domain:      domain,
		class:       class,
	}
}

// Title returns the snippet title.
func (s Snippet) Title() string { return s.title }

// Description returns the snippet description.
func (s Snippet) Description() string { return s.description }

// Code returns the snippet code.
func (s Snippet) Code() string { return s.code }

// Domain returns the long-tier domain tag.
func (s Snippet) Domain() string { return s.domain }

// Class returns the snippet classification.
func (s Snippet) Class() SnippetClass { return s.class }

// Text returns the embedded and stored text for the snippet.
func (s Snippet) Text() string {
	var b strings.Builder
	b.WriteString(s.title)
	if s.description != "" {
		b.WriteString("\n\n")
		b.WriteString(s.description)
	}
	if s.code != "" {
		b.WriteString("\n\n```bsl\n")
		b.WriteString(s.code)
		b.WriteString("\n```")
	}
	return b.String()
}

// Key returns the content address used for deduplication: a short
// domain prefix joined with a digest of title and code.
func (s Snippet) Key() string {
	d := s.domain
	if len(d) > 8 {
		d = d[:8]
	}
	sum := sha256.Sum256([]byte(s.title + "\x00" + s.code))
	return d + "_" + hex.EncodeToString(sum[:])[:12]
}

// PointID returns the stable numeric identifier derived from Key.
func (s Snippet) PointID() uint64 {
	return hashID(s.Key())
}

func hashID(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	n := uint64(0)
	for _, b := range sum[:8] {
		n = n<<8 | uint64(b)
	}
	return n % (1 << 63)
}
