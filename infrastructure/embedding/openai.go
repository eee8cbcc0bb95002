package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// errUpstreamFailure indicates the endpoint returned HTTP 200 with an
// empty body. Routing providers do this when every upstream is down;
// retrying is futile.
var errUpstreamFailure = errors.New("upstream embedding provider failure")

// OpenAIBackend embeds through an OpenAI-compatible HTTP endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string

	// retryAfterNanos holds the last 429 Retry-After delay captured by
	// the transport, consumed once by RetryAfterHint.
	retryAfterNanos atomic.Int64
}

// OpenAIConfig holds the remote backend settings.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAIBackend creates an OpenAIBackend. Only http and https
// endpoint schemes are accepted; anything else is rejected before any
// call is made.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	b := &OpenAIBackend{model: cfg.Model}
	if b.model == "" {
		b.model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEndpoint, cfg.BaseURL)
		}
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Transport: &retryAfterTransport{backend: b, inner: http.DefaultTransport},
	}

	b.client = openai.NewClientWithConfig(clientCfg)
	return b, nil
}

// Name returns the backend name.
func (b *OpenAIBackend) Name() string { return BackendOpenAI }

// EmbedOne embeds a single text.
func (b *OpenAIBackend) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds a batch in a single API call. A response with a
// different vector count than the input is reported as
// ErrCountMismatch so the dispatcher can run its mismatch protocol.
func (b *OpenAIBackend) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(b.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	// HTTP 200 with no data, no model, and zero usage is a routing
	// provider reporting that every upstream failed.
	if len(resp.Data) == 0 && string(resp.Model) == "" && resp.Usage.TotalTokens == 0 {
		return nil, errUpstreamFailure
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		vecs[i] = vec
	}
	return vecs, nil
}

// ProbeDimension discovers the vector dimension with a one-token call.
func (b *OpenAIBackend) ProbeDimension(ctx context.Context) (int, error) {
	vec, err := b.EmbedOne(ctx, ".")
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	return len(vec), nil
}

// RetryAfterHint returns the clamped Retry-After delay from the most
// recent 429 response, consuming it.
func (b *OpenAIBackend) RetryAfterHint() (time.Duration, bool) {
	nanos := b.retryAfterNanos.Swap(0)
	if nanos == 0 {
		return 0, false
	}
	return clampRetryAfter(time.Duration(nanos)), true
}

// retryAfterTransport captures Retry-After headers on 429 responses.
// The go-openai error types do not expose response headers, so the
// delay is recorded out of band and consumed by the dispatcher's retry
// loop.
type retryAfterTransport struct {
	backend *OpenAIBackend
	inner   http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			t.backend.retryAfterNanos.Store(int64(d))
		} else {
			t.backend.retryAfterNanos.Store(int64(minRetryAfter))
		}
	}
	return resp, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

// IsRetryable reports whether an error is worth another attempt:
// count mismatches, client timeouts, HTTP 429 and 5xx statuses, and
// transport-level request errors.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCountMismatch) {
		return true
	}
	if errors.Is(err, errUpstreamFailure) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}
