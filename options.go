package helpdex

import (
	"log/slog"

	"github.com/helpdex/helpdex/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	app     config.AppConfig
	appSet  bool
	appOpts []config.AppConfigOption

	sourceBase string
	backend    string
	qdrantHost string
	qdrantPort int
	production bool
	prodSet    bool

	logger *slog.Logger
}

func newClientConfig() *clientConfig {
	return &clientConfig{}
}

// build resolves the effective AppConfig: an explicit WithConfig or the
// layered options, then the scalar overrides on top.
func (c *clientConfig) build() config.AppConfig {
	cfg := c.app
	if !c.appSet {
		cfg = config.NewAppConfig(c.appOpts...)
	}

	var extra []config.AppConfigOption
	if c.sourceBase != "" {
		extra = append(extra, config.WithIngest(cfg.Ingest().WithSourceBase(c.sourceBase)))
	}
	if c.backend != "" {
		extra = append(extra, config.WithEmbedding(cfg.Embedding().WithBackend(c.backend)))
	}
	if c.qdrantHost != "" {
		q := cfg.Qdrant().WithHost(c.qdrantHost)
		if c.qdrantPort > 0 {
			q = q.WithPort(c.qdrantPort)
		}
		extra = append(extra, config.WithQdrant(q))
	}
	if c.prodSet {
		extra = append(extra, config.WithProduction(c.production))
	}
	if len(extra) == 0 {
		return cfg
	}

	seed := func(out *config.AppConfig) { *out = cfg }
	return config.NewAppConfig(append([]config.AppConfigOption{seed}, extra...)...)
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig uses a fully assembled configuration, typically loaded
// from the environment. Layered configuration options are ignored;
// scalar overrides still apply.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
		c.appSet = true
	}
}

// WithConfigOptions layers configuration options over the defaults.
func WithConfigOptions(opts ...config.AppConfigOption) Option {
	return func(c *clientConfig) {
		c.appOpts = append(c.appOpts, opts...)
	}
}

// WithDataDir sets the data directory for the ingest cache, memory
// state, and downloaded models.
func WithDataDir(dir string) Option {
	return WithConfigOptions(config.WithDataDir(dir))
}

// WithDBURL sets the ingest cache database URL
// (sqlite://path or postgres://dsn).
func WithDBURL(url string) Option {
	return WithConfigOptions(config.WithDBURL(url))
}

// WithSourceBase sets the root directory scanned for help archives.
func WithSourceBase(dir string) Option {
	return func(c *clientConfig) {
		c.sourceBase = dir
	}
}

// WithQdrant sets the vector store host and gRPC port. A port of zero
// keeps the default.
func WithQdrant(host string, port int) Option {
	return func(c *clientConfig) {
		c.qdrantHost = host
		c.qdrantPort = port
	}
}

// WithEmbeddingBackend selects the embedding backend
// (local, openai_api, deterministic, none).
func WithEmbeddingBackend(backend string) Option {
	return func(c *clientConfig) {
		c.backend = backend
	}
}

// WithProduction suppresses detailed error text in tool responses.
func WithProduction(production bool) Option {
	return func(c *clientConfig) {
		c.production = production
		c.prodSet = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
