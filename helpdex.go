// Package helpdex provides a library for indexing and searching
// 1C:Enterprise help archives.
//
// Helpdex ingests vendor .hbk archives, converts their HTML topics to
// Markdown, embeds them into a Qdrant collection, and serves them to AI
// agents over the Model Context Protocol.
//
// Basic usage:
//
//	client, err := helpdex.New(
//	    helpdex.WithSourceBase("/srv/1c/help"),
//	    helpdex.WithEmbeddingBackend("local"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Index every archive under the source base
//	summary, err := client.Ingest.Run(ctx, service.RunOptions{})
//
//	// Semantic search
//	results, degraded, err := client.Search.Semantic(ctx,
//	    "как открыть форму документа", 10, search.NewFilters())
package helpdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/helpdex/helpdex/application/service"
	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/infrastructure/archive"
	"github.com/helpdex/helpdex/infrastructure/embedding"
	"github.com/helpdex/helpdex/infrastructure/persistence"
	"github.com/helpdex/helpdex/infrastructure/pipeline"
	"github.com/helpdex/helpdex/infrastructure/qdrant"
	"github.com/helpdex/helpdex/internal/config"
	"github.com/helpdex/helpdex/internal/database"
	"github.com/helpdex/helpdex/internal/log"
	"github.com/helpdex/helpdex/internal/mcp"
)

// Client is the main entry point for the helpdex library.
//
// Access subsystems via struct fields:
//
//	client.Search.Semantic(ctx, query, 10, filters)
//	client.Ingest.Run(ctx, service.RunOptions{})
//	client.Memory.SaveSnippet(ctx, snippet)
type Client struct {
	// Public service fields (direct access)
	Search    *service.Search
	Memory    *service.Memory
	Ingest    *service.Ingest
	Snippets  *service.SnippetLoader
	Standards *service.StandardsLoader

	cfg         config.AppConfig
	db          database.Database
	topicStore  *qdrant.Store
	memoryStore *qdrant.Store
	localModel  *embedding.LocalBackend
	embedder    *embedding.Dispatcher
	watcher     *service.Watcher
	mcpServer   *mcp.Server
	logger      *slog.Logger
	closed      atomic.Bool
}

// New creates a Client from programmatic options layered over defaults.
func New(opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, opt := range opts {
		opt(cc)
	}

	cfg := cc.build()
	logger := cc.logger
	if logger == nil {
		logger = log.NewLogger(cfg).Slog()
	}

	if err := cfg.PrepareDataDir(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.DBURL(), logger)
	if err != nil {
		return nil, fmt.Errorf("open ingest cache: %w", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}
	cache := persistence.NewArchiveRecordStore(db)

	backend, localModel, err := buildBackend(cfg, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(err, errClose)
	}
	embCfg := cfg.Embedding()
	dispatcher := embedding.NewDispatcher(backend, embedding.DispatcherConfig{
		BatchSize:     embCfg.BatchSize(),
		Workers:       embCfg.Workers(),
		MaxInputChars: embCfg.MaxInputChars(),
		Timeout:       embCfg.Timeout(),
		MaxConcurrent: embCfg.MaxConcurrent(),
		SemaphoreWait: embCfg.SemaphoreWait(),
		RetryAttempts: embCfg.RetryAttempts(),
		InitialDelay:  embCfg.InitialDelay(),
	}, logger)

	topicStore, err := qdrant.NewStore(qdrant.Config{
		Host:        cfg.Qdrant().Host(),
		Port:        cfg.Qdrant().Port(),
		RestPort:    cfg.Qdrant().RestPort(),
		APIKey:      cfg.Qdrant().APIKey(),
		UseTLS:      cfg.Qdrant().UseTLS(),
		Collection:  cfg.Qdrant().Collection(),
		UpsertBatch: cfg.Ingest().IndexBatchSize(),
	}, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("topic store: %w", err), errClose)
	}
	memoryStore, err := qdrant.NewStore(qdrant.Config{
		Host:        cfg.Qdrant().Host(),
		Port:        cfg.Qdrant().Port(),
		RestPort:    cfg.Qdrant().RestPort(),
		APIKey:      cfg.Qdrant().APIKey(),
		UseTLS:      cfg.Qdrant().UseTLS(),
		Collection:  cfg.Qdrant().MemoryCollection(),
		UpsertBatch: cfg.Ingest().IndexBatchSize(),
	}, logger)
	if err != nil {
		errClose := errors.Join(topicStore.Close(), db.Close())
		return nil, errors.Join(fmt.Errorf("memory store: %w", err), errClose)
	}

	extractor := archive.NewExtractor(logger)
	pipe := pipeline.New(extractor, cfg.Ingest().TempRoot(), logger)
	status := service.NewStatusWriter(cfg.Ingest().StatusFilePath(), logger)

	ingest := service.NewIngest(cfg.Ingest(), cache, pipe, dispatcher, topicStore, status, logger)
	memory := service.NewMemory(cfg.Memory(), dispatcher, memoryStore, logger)

	var lexicalMemory search.Store
	if cfg.Memory().Enabled() {
		lexicalMemory = memoryStore
	}
	searchSvc := service.NewSearch(topicStore, lexicalMemory, dispatcher, logger)

	var roots []string
	if base := cfg.Ingest().SourceBase(); base != "" {
		roots = append(roots, base)
	}
	watcher := service.NewWatcher(cfg.Watcher(), roots, cfg.DataDir(), ingest, memory, logger)

	client := &Client{
		Search:      searchSvc,
		Memory:      memory,
		Ingest:      ingest,
		Snippets:    service.NewSnippetLoader(memory, logger),
		Standards:   service.NewStandardsLoader(memory, nil, logger),
		cfg:         cfg,
		db:          db,
		topicStore:  topicStore,
		memoryStore: memoryStore,
		localModel:  localModel,
		embedder:    dispatcher,
		watcher:     watcher,
		logger:      logger,
	}
	client.mcpServer = mcp.NewServer(
		searchSvc, memory, ingest, dispatcher,
		cfg.Tools(), cfg.Production(), logger,
	)
	return client, nil
}

// buildBackend selects the embedding backend from configuration.
func buildBackend(cfg config.AppConfig, logger *slog.Logger) (embedding.Backend, *embedding.LocalBackend, error) {
	embCfg := cfg.Embedding()
	switch embCfg.Backend() {
	case embedding.BackendLocal:
		modelDir := embCfg.ModelCacheDir()
		if modelDir == "" {
			modelDir = filepath.Join(cfg.DataDir(), "models")
		}
		local := embedding.NewLocalBackend(modelDir)
		if !local.Available() {
			return nil, nil, fmt.Errorf("no embedding model found in %s: %w",
				modelDir, embedding.ErrLocalModelUnavailable)
		}
		logger.Info("local embedding backend enabled", slog.String("model_dir", modelDir))
		return local, local, nil
	case embedding.BackendOpenAI:
		backend, err := embedding.NewOpenAIBackend(embedding.OpenAIConfig{
			BaseURL: embCfg.BaseURL(),
			APIKey:  embCfg.APIKey(),
			Model:   embCfg.Model(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("remote embedding backend: %w", err)
		}
		return backend, nil, nil
	case embedding.BackendDeterministic:
		return embedding.NewDeterministicBackend(), nil, nil
	case embedding.BackendNone:
		logger.Warn("embedding disabled, semantic search degraded to lexical")
		return embedding.NewPlaceholderBackend(embCfg.Dimension()), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding backend %q", embCfg.Backend())
	}
}

// Start prepares long-running serving: it ensures the memory collection
// exists and starts the source watcher. Ingest-only usage does not need
// Start.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.Memory().Enabled() {
		dimension, err := c.embedder.Dimension(ctx)
		if err != nil {
			return fmt.Errorf("probe embedding dimension: %w", err)
		}
		if err := c.memoryStore.Ensure(ctx, dimension); err != nil {
			return fmt.Errorf("ensure memory collection: %w", err)
		}
	}
	c.watcher.Start(ctx)
	return nil
}

// Stop halts the source watcher. Safe to call without Start.
func (c *Client) Stop() {
	c.watcher.Stop()
}

// Close releases all resources. The watcher, if started, is stopped
// first.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.watcher.Stop()

	var errs []error
	if c.localModel != nil {
		if err := c.localModel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close local model: %w", err))
		}
	}
	if err := c.topicStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close topic store: %w", err))
	}
	if err := c.memoryStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close memory store: %w", err))
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ingest cache: %w", err))
	}

	c.logger.Info("helpdex client closed")
	return errors.Join(errs...)
}

// MCP returns the MCP server facade.
func (c *Client) MCP() *mcp.Server { return c.mcpServer }

// Snapshots returns the snapshot interface of the topic collection,
// used for backup and cross-host migration.
func (c *Client) Snapshots() search.Snapshotter { return c.topicStore }

// Config returns the effective configuration.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Embedder returns the embedding dispatcher.
func (c *Client) Embedder() search.Embedder { return c.embedder }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }
