// Package search defines the vector-store facing types shared by the
// index writer, the memory subsystem, and the tool facade.
package search

// Domain tags partition points within the collection.
const (
	DomainHelp      = "help"
	DomainSnippets  = "snippets"
	DomainCommunity = "community_help"
	DomainStandards = "standards"
	DomainSessions  = "sessions"
)

// Payload is the stored metadata carried by every point.
type Payload struct {
	path     string
	title    string
	text     string
	version  string
	language string
	domain   string
}

// NewPayload creates a Payload.
func NewPayload(path, title, text, version, language, domain string) Payload {
	return Payload{
		path:     path,
		title:    title,
		text:     text,
		version:  version,
		language: language,
		domain:   domain,
	}
}

// Path returns the source path.
func (p Payload) Path() string { return p.path }

// Title returns the title.
func (p Payload) Title() string { return p.title }

// Text returns the stored text.
func (p Payload) Text() string { return p.text }

// Version returns the version tag.
func (p Payload) Version() string { return p.version }

// Language returns the language tag.
func (p Payload) Language() string { return p.language }

// Domain returns the domain tag.
func (p Payload) Domain() string { return p.domain }

// Point couples an id, a vector, and a payload for upsert.
type Point struct {
	id      uint64
	vector  []float32
	payload Payload
}

// NewPoint creates a Point.
func NewPoint(id uint64, vector []float32, payload Payload) Point {
	v := make([]float32, len(vector))
	copy(v, vector)
	return Point{id: id, vector: v, payload: payload}
}

// ID returns the point id.
func (p Point) ID() uint64 { return p.id }

// Vector returns the embedding vector.
func (p Point) Vector() []float32 {
	v := make([]float32, len(p.vector))
	copy(v, p.vector)
	return v
}

// Payload returns the point payload.
func (p Point) Payload() Payload { return p.payload }

// Result is a ranked search hit.
type Result struct {
	id      uint64
	score   float32
	payload Payload
}

// NewResult creates a Result.
func NewResult(id uint64, score float32, payload Payload) Result {
	return Result{id: id, score: score, payload: payload}
}

// ID returns the point id.
func (r Result) ID() uint64 { return r.id }

// Score returns the similarity score.
func (r Result) Score() float32 { return r.score }

// Payload returns the hit payload.
func (r Result) Payload() Payload { return r.payload }
