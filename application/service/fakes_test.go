package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/helpdex/helpdex/domain/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory search.Store. Scroll treats the offset as a
// slice index, which satisfies the zero-means-exhausted contract.
type fakeStore struct {
	mu          sync.Mutex
	points      []search.Point
	searchHits  []search.Result
	scrollCalls int
	searchCalls int
	upsertErr   error
}

func (f *fakeStore) Ensure(context.Context, int) error   { return nil }
func (f *fakeStore) Recreate(context.Context, int) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, points []search.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		replaced := false
		for i, existing := range f.points {
			if existing.ID() == p.ID() {
				f.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			f.points = append(f.points, p)
		}
	}
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, k int, filters search.Filters) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	hits := f.searchHits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeStore) Scroll(_ context.Context, filters search.Filters, limit int, offset uint64) ([]search.Result, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrollCalls++

	var matching []search.Result
	for _, p := range f.points {
		if matchesFilters(p.Payload(), filters) {
			matching = append(matching, search.NewResult(p.ID(), 0, p.Payload()))
		}
	}
	if offset >= uint64(len(matching)) {
		return nil, 0, nil
	}
	end := offset + uint64(limit)
	if end > uint64(len(matching)) {
		end = uint64(len(matching))
	}
	page := matching[offset:end]
	next := end
	if end == uint64(len(matching)) {
		next = 0
	}
	return page, next, nil
}

func (f *fakeStore) Count(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.points)), nil
}

func (f *fakeStore) payloads() []search.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]search.Payload, len(f.points))
	for i, p := range f.points {
		out[i] = p.Payload()
	}
	return out
}

func matchesFilters(p search.Payload, f search.Filters) bool {
	if f.Version() != "" && p.Version() != f.Version() {
		return false
	}
	if f.Language() != "" && p.Language() != f.Language() {
		return false
	}
	if f.Domain() != "" && p.Domain() != f.Domain() {
		return false
	}
	if f.PathPrefix() != "" && !strings.HasPrefix(p.Path(), f.PathPrefix()) {
		return false
	}
	return true
}

// fakeEmbedder is a scriptable search.Embedder.
type fakeEmbedder struct {
	mu       sync.Mutex
	name     string
	dim      int
	embedErr error
	degraded bool
	calls    int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{name: "deterministic", dim: 4}
}

func (f *fakeEmbedder) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedErr = err
}

func (f *fakeEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	v := make([]float32, f.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (f *fakeEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension(context.Context) (int, error) { return f.dim, nil }
func (f *fakeEmbedder) Name() string                           { return f.name }
func (f *fakeEmbedder) Degraded() bool                         { return f.degraded }

func helpResult(id uint64, path, title, text string) search.Result {
	return search.NewResult(id, 0,
		search.NewPayload(path, title, text, "8.3.24", "ru", search.DomainHelp))
}

func helpPoint(id uint64, path, title, text string) search.Point {
	return search.NewPoint(id, []float32{0, 0, 0, 0},
		search.NewPayload(path, title, text, "8.3.24", "ru", search.DomainHelp))
}
