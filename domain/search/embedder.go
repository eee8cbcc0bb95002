package search

import "context"

// Embedder converts text into embedding vectors. Implementations must
// return exactly one vector per input, in input order.
type Embedder interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds a batch of texts.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension, probing the backend on
	// first use and memoizing the answer.
	Dimension(ctx context.Context) (int, error)

	// Name identifies the active backend ("local", "openai_api",
	// "deterministic", "none").
	Name() string

	// Degraded reports whether recent calls fell back to placeholder
	// vectors. Semantic search quality is reduced while true.
	Degraded() bool
}
