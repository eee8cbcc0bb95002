// Package qdrant implements the vector store contract on top of a
// Qdrant server reached over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/helpdex/helpdex/domain/search"
)

// defaultUpsertBatch bounds a single upsert call when the config does
// not set one. Large archives produce tens of thousands of points;
// unbounded upserts trip the server's message size limit.
const defaultUpsertBatch = 500

// prefixOverfetch widens searches that carry a path prefix filter.
// Qdrant has no server-side prefix condition on keyword payloads, so
// the store over-fetches and filters locally.
const prefixOverfetch = 4

// Config holds the connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string

	// RestPort is the server's HTTP API port, used only for snapshot
	// recovery. Zero selects the Qdrant default 6333.
	RestPort int

	// UpsertBatch bounds the points sent per upsert call. Zero selects
	// defaultUpsertBatch.
	UpsertBatch int
}

// Store is a Qdrant-backed search.Store. All points live in a single
// collection; the memory tiers share it with help topics and are told
// apart by the domain payload field.
type Store struct {
	client      *qdrant.Client
	collection  string
	upsertBatch int
	restBase    string
	apiKey      string
	http        *http.Client
	logger      *slog.Logger
}

// NewStore connects to Qdrant and returns a Store. The connection is
// lazy; the first operation surfaces connectivity errors.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	batch := cfg.UpsertBatch
	if batch <= 0 {
		batch = defaultUpsertBatch
	}
	restPort := cfg.RestPort
	if restPort == 0 {
		restPort = 6333
	}
	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	return &Store{
		client:      client,
		collection:  cfg.Collection,
		upsertBatch: batch,
		restBase:    fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, restPort),
		apiKey:      cfg.APIKey,
		http:        http.DefaultClient,
		logger:      logger,
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Collection returns the collection name the store writes to.
func (s *Store) Collection() string { return s.collection }

// Ensure creates the collection when absent. An existing collection
// with a different vector dimension is left intact and reported as
// search.ErrDimensionMismatch so the caller can decide to recreate.
func (s *Store) Ensure(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if !exists {
		return s.create(ctx, dimension)
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("inspect collection %s: %w", s.collection, err)
	}
	existing := collectionDimension(info)
	if existing != 0 && existing != uint64(dimension) {
		return fmt.Errorf("collection %s has dimension %d, embedder produces %d: %w",
			s.collection, existing, dimension, search.ErrDimensionMismatch)
	}
	return nil
}

// Recreate drops and recreates the collection at the given dimension.
func (s *Store) Recreate(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("delete collection %s: %w", s.collection, err)
		}
		s.logger.Info("dropped collection", "collection", s.collection)
	}
	return s.create(ctx, dimension)
}

func (s *Store) create(ctx context.Context, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	// Keyword indexes back the filterable payload fields.
	for _, field := range []string{"version", "language", "domain"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("index payload field %s: %w", field, err)
		}
	}
	s.logger.Info("created collection",
		"collection", s.collection, "dimension", dimension)
	return nil
}

// Upsert writes points in bounded chunks, waiting for each chunk to
// be applied before sending the next.
func (s *Store) Upsert(ctx context.Context, points []search.Point) error {
	for start := 0; start < len(points); start += s.upsertBatch {
		end := start + s.upsertBatch
		if end > len(points) {
			end = len(points)
		}
		chunk := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			chunk = append(chunk, toPointStruct(p))
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         chunk,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("upsert %d points: %w", len(chunk), err)
		}
	}
	return nil
}

// Search returns up to k hits ranked by descending cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filters search.Filters) ([]search.Result, error) {
	limit := uint64(k)
	if filters.PathPrefix() != "" {
		limit *= prefixOverfetch
	}
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		Filter:         toFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", s.collection, err)
	}

	results := make([]search.Result, 0, k)
	for _, point := range scored {
		payload := fromPayload(point.GetPayload())
		if !matchesPrefix(payload, filters.PathPrefix()) {
			continue
		}
		results = append(results, search.NewResult(point.GetId().GetNum(), point.GetScore(), payload))
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Scroll pages through payloads matching the filters in point id
// order. The returned offset starts the next page; zero means the
// listing is exhausted.
func (s *Store) Scroll(ctx context.Context, filters search.Filters, limit int, offset uint64) ([]search.Result, uint64, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		Filter:         toFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset > 0 {
		req.Offset = qdrant.NewIDNum(offset)
	}
	points, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("scroll collection %s: %w", s.collection, err)
	}

	results := make([]search.Result, 0, len(points))
	for _, point := range points {
		payload := fromPayload(point.GetPayload())
		if !matchesPrefix(payload, filters.PathPrefix()) {
			continue
		}
		results = append(results, search.NewResult(point.GetId().GetNum(), 0, payload))
	}

	var next uint64
	if len(points) == limit && len(points) > 0 {
		next = points[len(points)-1].GetId().GetNum() + 1
	}
	return results, next, nil
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count collection %s: %w", s.collection, err)
	}
	return count, nil
}

func toPointStruct(p search.Point) *qdrant.PointStruct {
	payload := p.Payload()
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(p.ID()),
		Vectors: qdrant.NewVectors(p.Vector()...),
		Payload: qdrant.NewValueMap(map[string]any{
			"path":     payload.Path(),
			"title":    payload.Title(),
			"text":     payload.Text(),
			"version":  payload.Version(),
			"language": payload.Language(),
			"domain":   payload.Domain(),
		}),
	}
}

func toFilter(filters search.Filters) *qdrant.Filter {
	var must []*qdrant.Condition
	if v := filters.Version(); v != "" {
		must = append(must, qdrant.NewMatch("version", v))
	}
	if l := filters.Language(); l != "" {
		must = append(must, qdrant.NewMatch("language", l))
	}
	if d := filters.Domain(); d != "" {
		must = append(must, qdrant.NewMatch("domain", d))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func fromPayload(values map[string]*qdrant.Value) search.Payload {
	get := func(key string) string { return values[key].GetStringValue() }
	return search.NewPayload(
		get("path"), get("title"), get("text"),
		get("version"), get("language"), get("domain"),
	)
}

// collectionDimension reads the vector size of an existing collection,
// or zero when the server response does not carry one.
func collectionDimension(info *qdrant.CollectionInfo) uint64 {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0
	}
	return params.GetSize()
}

func matchesPrefix(payload search.Payload, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(payload.Path(), prefix)
}
