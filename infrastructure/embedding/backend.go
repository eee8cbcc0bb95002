// Package embedding turns text into vectors. A Backend does the raw
// model call; the Dispatcher wraps the chosen backend with the
// cross-cutting concerns: sanitize, truncate, batching, retries,
// concurrency limits, and placeholder fallback.
package embedding

import (
	"context"
	"errors"
	"time"
)

// Backend names.
const (
	BackendLocal         = "local"
	BackendOpenAI        = "openai_api"
	BackendDeterministic = "deterministic"
	BackendNone          = "none"
)

// Backend is a single embedding implementation. Backends stay simple:
// one call in, vectors out, no retry or batching logic.
type Backend interface {
	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds a batch in one call, returning exactly one
	// vector per input in input order, or an error.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// ProbeDimension discovers the vector dimension, issuing a probe
	// call when the backend cannot know it statically.
	ProbeDimension(ctx context.Context) (int, error)

	// Name identifies the backend.
	Name() string
}

// Sentinel errors surfaced by backends and the dispatcher.
var (
	// ErrCountMismatch indicates the backend returned a different
	// number of vectors than inputs. Retriable.
	ErrCountMismatch = errors.New("embedding response count mismatch")

	// ErrDimensionChanged indicates a call returned vectors of a
	// dimension different from the memoized probe. The orchestrator
	// converts this into a collection-recreate request.
	ErrDimensionChanged = errors.New("embedding dimension changed")

	// ErrInvalidEndpoint indicates the remote endpoint URL scheme is
	// not http or https.
	ErrInvalidEndpoint = errors.New("invalid embedding endpoint")

	// ErrSemaphoreTimeout indicates the global concurrency semaphore
	// could not be acquired within the bounded wait.
	ErrSemaphoreTimeout = errors.New("embedding concurrency semaphore timeout")
)

// Retry-After clamp bounds for HTTP 429 responses.
const (
	minRetryAfter = time.Second
	maxRetryAfter = 120 * time.Second
)

// retryHinter is implemented by backends that can surface a server
// supplied retry delay (HTTP 429 Retry-After).
type retryHinter interface {
	RetryAfterHint() (time.Duration, bool)
}

// clampRetryAfter bounds a server-supplied delay to [1s, 120s].
func clampRetryAfter(d time.Duration) time.Duration {
	if d < minRetryAfter {
		return minRetryAfter
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
