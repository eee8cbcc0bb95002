package embedding

import (
	"context"
	"crypto/sha256"
)

// PlaceholderBackend is the "none" backend: content-derived filler
// vectors with no semantic meaning. The index stays populated so every
// lexical operation works, but similarity search is degraded.
type PlaceholderBackend struct {
	dimension int
}

// NewPlaceholderBackend creates a PlaceholderBackend at the given
// dimension.
func NewPlaceholderBackend(dimension int) *PlaceholderBackend {
	if dimension <= 0 {
		dimension = DeterministicDimension
	}
	return &PlaceholderBackend{dimension: dimension}
}

// Name returns the backend name.
func (p *PlaceholderBackend) Name() string { return BackendNone }

// ProbeDimension returns the configured dimension.
func (p *PlaceholderBackend) ProbeDimension(context.Context) (int, error) {
	return p.dimension, nil
}

// EmbedOne embeds a single text.
func (p *PlaceholderBackend) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return PlaceholderVector(text, p.dimension), nil
}

// EmbedMany embeds a batch of texts.
func (p *PlaceholderBackend) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = PlaceholderVector(t, p.dimension)
	}
	return out, nil
}

// PlaceholderVector derives a filler vector from a digest of the text.
// Also used by the dispatcher for slots whose real embedding failed
// after all retries.
func PlaceholderVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = float32(int(sum[i%len(sum)])-128) / 128.0
	}
	return vec
}
