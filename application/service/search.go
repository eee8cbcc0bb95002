package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/infrastructure/embedding"
)

// scrollPageSize is the page size for lexical scans over the index.
const scrollPageSize = 256

// Search serves the read side of the tool facade: semantic queries
// against the vector index and lexical scans over stored payloads.
type Search struct {
	topics   search.Store
	memory   search.Store
	embedder search.Embedder
	logger   *slog.Logger
}

// NewSearch creates a Search service. The memory store may be nil when
// memory is disabled; lexical scans then cover help topics only.
func NewSearch(topics, memoryStore search.Store, embedder search.Embedder, logger *slog.Logger) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		topics:   topics,
		memory:   memoryStore,
		embedder: embedder,
		logger:   logger,
	}
}

// Semantic runs a vector similarity search. With a placeholder backend,
// or when the query embedding fails, it degrades to a lexical search
// and reports that through the degraded flag.
func (s *Search) Semantic(ctx context.Context, query string, k int, filters search.Filters) ([]search.Result, bool, error) {
	if s.embedder.Name() == embedding.BackendNone {
		results, err := s.Keyword(ctx, query, k, filters)
		return results, true, err
	}

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to lexical search", "error", err)
		results, kwErr := s.Keyword(ctx, query, k, filters)
		if kwErr != nil {
			return nil, true, kwErr
		}
		return results, true, nil
	}

	results, err := s.topics.Search(ctx, vector, k, filters)
	if err != nil {
		return nil, false, err
	}
	// Descending score is the store's contract; keep it explicit since
	// callers rely on the ordering.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	return results, s.embedder.Degraded(), nil
}

// Keyword performs a case-insensitive substring scan. Title matches
// rank above body matches; within a band results keep the stable scan
// order. Every returned payload contains the query in its title or
// body.
func (s *Search) Keyword(ctx context.Context, query string, k int, filters search.Filters) ([]search.Result, error) {
	needle := strings.ToLower(query)
	var titleBand, bodyBand []search.Result

	collect := func(r search.Result) bool {
		payload := r.Payload()
		switch {
		case strings.Contains(strings.ToLower(payload.Title()), needle):
			titleBand = append(titleBand, r)
		case strings.Contains(strings.ToLower(payload.Text()), needle):
			bodyBand = append(bodyBand, r)
		}
		return len(titleBand) < k
	}

	if err := s.scan(ctx, s.topics, filters, collect); err != nil {
		return nil, err
	}
	if s.memory != nil && filters.Domain() != search.DomainHelp {
		if err := s.scan(ctx, s.memory, filters, collect); err != nil {
			s.logger.Warn("memory scan failed", "error", err)
		}
	}

	results := append(titleBand, bodyBand...)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Topic fetches one topic by path: exact match first, then unique
// suffix match. A missing topic is search.ErrNotFound.
func (s *Search) Topic(ctx context.Context, path string, filters search.Filters) (search.Result, error) {
	var exact, suffix []search.Result
	err := s.scan(ctx, s.topics, filters, func(r search.Result) bool {
		p := r.Payload().Path()
		if p == path {
			exact = append(exact, r)
			return false
		}
		if strings.HasSuffix(p, path) {
			suffix = append(suffix, r)
		}
		return true
	})
	if err != nil {
		return search.Result{}, err
	}
	if len(exact) > 0 {
		return exact[0], nil
	}
	if len(suffix) > 0 {
		return suffix[0], nil
	}
	return search.Result{}, fmt.Errorf("topic %s: %w", path, search.ErrNotFound)
}

// FunctionInfo finds topics for an API identifier. Ordering bands:
// exact title, case-insensitive title, body occurrence, semantic
// neighbors; stable within each band.
func (s *Search) FunctionInfo(ctx context.Context, ident string, k int, filters search.Filters) ([]search.Result, error) {
	needle := strings.ToLower(ident)
	var exact, ciTitle, body []search.Result

	err := s.scan(ctx, s.topics, filters, func(r search.Result) bool {
		title := r.Payload().Title()
		switch {
		case title == ident:
			exact = append(exact, r)
		case strings.Contains(strings.ToLower(title), needle):
			ciTitle = append(ciTitle, r)
		case strings.Contains(strings.ToLower(r.Payload().Text()), needle):
			body = append(body, r)
		}
		return len(exact) < k
	})
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, k)
	seen := map[uint64]bool{}
	appendBand := func(band []search.Result) {
		for _, r := range band {
			if len(results) == k || seen[r.ID()] {
				continue
			}
			seen[r.ID()] = true
			results = append(results, r)
		}
	}
	appendBand(exact)
	appendBand(ciTitle)
	appendBand(body)

	if len(results) < k && s.embedder.Name() != embedding.BackendNone {
		semantic, _, err := s.Semantic(ctx, ident, k, filters)
		if err != nil {
			s.logger.Warn("semantic band failed", "identifier", ident, "error", err)
		} else {
			appendBand(semantic)
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("function %s: %w", ident, search.ErrNotFound)
	}
	return results, nil
}

// Titles lists path and title pairs, optionally under a path prefix,
// with scroll-based pagination.
func (s *Search) Titles(ctx context.Context, prefix string, limit int, offset uint64) ([]search.Result, uint64, error) {
	filters := search.NewFilters(
		search.WithDomain(search.DomainHelp),
		search.WithPathPrefix(prefix),
	)
	return s.topics.Scroll(ctx, filters, limit, offset)
}

// Counts returns the point counts of the topic and memory collections.
func (s *Search) Counts(ctx context.Context) (topics, memoryPoints uint64, err error) {
	topics, err = s.topics.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	if s.memory != nil {
		memoryPoints, err = s.memory.Count(ctx)
		if err != nil {
			return topics, 0, err
		}
	}
	return topics, memoryPoints, nil
}

// Inventory scans the help domain and returns the distinct version and
// language tags present in the index.
func (s *Search) Inventory(ctx context.Context) (versions, languages []string, err error) {
	versionSet := map[string]bool{}
	languageSet := map[string]bool{}
	filters := search.NewFilters(search.WithDomain(search.DomainHelp))
	err = s.scan(ctx, s.topics, filters, func(r search.Result) bool {
		if v := r.Payload().Version(); v != "" {
			versionSet[v] = true
		}
		if l := r.Payload().Language(); l != "" {
			languageSet[l] = true
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	for v := range versionSet {
		versions = append(versions, v)
	}
	for l := range languageSet {
		languages = append(languages, l)
	}
	sort.Strings(versions)
	sort.Strings(languages)
	return versions, languages, nil
}

// scan pages through a store with the given filters. The visit
// callback returns false to request early exit after the current page.
func (s *Search) scan(ctx context.Context, store search.Store, filters search.Filters, visit func(search.Result) bool) error {
	var offset uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, next, err := store.Scroll(ctx, filters, scrollPageSize, offset)
		if err != nil {
			return err
		}
		keepGoing := true
		for _, r := range page {
			if !visit(r) {
				keepGoing = false
			}
		}
		if next == 0 || !keepGoing {
			return nil
		}
		offset = next
	}
}

// IsNotFound reports whether err is the not-found error kind.
func IsNotFound(err error) bool {
	return errors.Is(err, search.ErrNotFound)
}
