package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration. Field names map
// directly to environment variables; nested structs use underscore
// delimiters (e.g. EMBEDDING_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// MCPPath is the streamable HTTP mount path.
	// Env: MCP_PATH (default: /mcp)
	MCPPath string `envconfig:"MCP_PATH" default:"/mcp"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.helpdex
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the ingest cache database URL.
	// Env: DB_URL
	// Default: sqlite://{data_dir}/ingest-cache.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// Production suppresses detailed error text in tool responses.
	// Env: PRODUCTION (default: false)
	Production bool `envconfig:"PRODUCTION" default:"false"`

	// SourceBase is the root directory scanned for help archives.
	// Env: HELP_SOURCE_BASE
	SourceBase string `envconfig:"HELP_SOURCE_BASE"`

	// SourcesDirAlias is the deprecated alias for SourceBase.
	// Env: HELP_SOURCES_DIR
	SourcesDirAlias string `envconfig:"HELP_SOURCES_DIR"`

	// Languages filters archives by language ("all" or empty: no filter).
	// Env: HELP_LANGUAGES
	Languages string `envconfig:"HELP_LANGUAGES"`

	// IngestTemp is the extraction scratch root.
	// Env: HELP_INGEST_TEMP
	IngestTemp string `envconfig:"HELP_INGEST_TEMP"`

	// IngestWorkers is the per-archive worker pool size.
	// Env: INGEST_WORKERS (default: 2)
	IngestWorkers int `envconfig:"INGEST_WORKERS" default:"2"`

	// IndexBatchSize is the vector-store upsert chunk size.
	// Env: INDEX_BATCH_SIZE (default: 500)
	IndexBatchSize int `envconfig:"INDEX_BATCH_SIZE" default:"500"`

	// IngestFailedLog is the ingest failure log path.
	// Env: INGEST_FAILED_LOG
	IngestFailedLog string `envconfig:"INGEST_FAILED_LOG"`

	// IngestStatusFile is the ingest status record path.
	// Env: INGEST_STATUS_FILE
	IngestStatusFile string `envconfig:"INGEST_STATUS_FILE"`

	// Qdrant configures the vector store connection.
	Qdrant QdrantEnv `envconfig:"QDRANT"`

	// Embedding configures the embedding dispatcher.
	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	// Memory configures the memory subsystem.
	Memory MemoryEnv `envconfig:"MEMORY"`

	// Watchdog configures the source watcher.
	Watchdog WatchdogEnv `envconfig:"WATCHDOG"`

	// ToolRateLimitRPM is the per-operation requests-per-minute budget.
	// Env: TOOL_RATE_LIMIT_RPM (default: 60)
	ToolRateLimitRPM int `envconfig:"TOOL_RATE_LIMIT_RPM" default:"60"`

	// ToolMaxInputBytes is the tool input size cap.
	// Env: TOOL_MAX_INPUT_BYTES (default: 65536)
	ToolMaxInputBytes int `envconfig:"TOOL_MAX_INPUT_BYTES" default:"65536"`

	// SnippetsDir is the snippets directory read by load-snippets.
	// Env: SNIPPETS_DIR
	SnippetsDir string `envconfig:"SNIPPETS_DIR"`

	// Standards configures the standards loader.
	Standards StandardsEnv `envconfig:"STANDARDS"`
}

// QdrantEnv holds environment configuration for the vector store.
type QdrantEnv struct {
	// Host is the Qdrant host.
	// Env: QDRANT_HOST (default: localhost)
	Host string `envconfig:"HOST" default:"localhost"`

	// Port is the Qdrant gRPC port.
	// Env: QDRANT_PORT (default: 6334)
	Port int `envconfig:"PORT" default:"6334"`

	// RestPort is the Qdrant HTTP API port, used for snapshot recovery.
	// Env: QDRANT_REST_PORT (default: 6333)
	RestPort int `envconfig:"REST_PORT" default:"6333"`

	// APIKey is the Qdrant API key.
	// Env: QDRANT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Collection is the help-topics collection name.
	// Env: QDRANT_COLLECTION (default: help_topics)
	Collection string `envconfig:"COLLECTION" default:"help_topics"`

	// MemoryCollection is the memory collection name.
	// Env: QDRANT_MEMORY_COLLECTION (default: help_memory)
	MemoryCollection string `envconfig:"MEMORY_COLLECTION" default:"help_memory"`

	// UseTLS enables TLS on the connection.
	// Env: QDRANT_USE_TLS (default: false)
	UseTLS bool `envconfig:"USE_TLS" default:"false"`
}

// EmbeddingEnv holds environment configuration for embedding.
type EmbeddingEnv struct {
	// Backend selects the embedding backend
	// (local, openai_api, deterministic, none).
	// Env: EMBEDDING_BACKEND (default: local)
	Backend string `envconfig:"BACKEND" default:"local"`

	// Model is the model identifier for the active backend.
	// Env: EMBEDDING_MODEL
	Model string `envconfig:"MODEL"`

	// BaseURL is the OpenAI-compatible endpoint base URL.
	// Env: EMBEDDING_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// APIKey is the endpoint API key.
	// Env: EMBEDDING_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Dim is the expected vector dimension.
	// Env: EMBEDDING_DIM (default: 384)
	Dim int `envconfig:"DIM" default:"384"`

	// BatchSize is the remote batch size.
	// Env: EMBEDDING_BATCH_SIZE (default: 64)
	BatchSize int `envconfig:"BATCH_SIZE" default:"64"`

	// ForceBatch raises the batch and worker ceilings.
	// Env: EMBEDDING_FORCE_BATCH (default: false)
	ForceBatch bool `envconfig:"FORCE_BATCH" default:"false"`

	// Workers is the batch worker pool size.
	// Env: EMBEDDING_WORKERS (default: 4)
	Workers int `envconfig:"WORKERS" default:"4"`

	// MaxInputChars is the per-input truncation cap.
	// Env: EMBEDDING_MAX_INPUT_CHARS (default: 2000)
	MaxInputChars int `envconfig:"MAX_INPUT_CHARS" default:"2000"`

	// Timeout is the single-call timeout in seconds.
	// Env: EMBEDDING_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxConcurrent is the global concurrency semaphore size.
	// Env: EMBEDDING_MAX_CONCURRENT (default: 8)
	MaxConcurrent int `envconfig:"MAX_CONCURRENT" default:"8"`

	// SemaphoreWait is the bounded semaphore acquire wait in seconds.
	// Env: EMBEDDING_SEMAPHORE_WAIT (default: 300)
	SemaphoreWait float64 `envconfig:"SEMAPHORE_WAIT" default:"300"`

	// RetryAttempts is the retry attempt count.
	// Env: EMBEDDING_RETRY_ATTEMPTS (default: 3)
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`

	// InitialDelay is the first retry delay in seconds.
	// Env: EMBEDDING_INITIAL_DELAY (default: 1.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"1.0"`

	// ModelCacheDir is the local model cache directory.
	// Env: EMBEDDING_MODEL_CACHE_DIR
	ModelCacheDir string `envconfig:"MODEL_CACHE_DIR"`
}

// MemoryEnv holds environment configuration for the memory subsystem.
type MemoryEnv struct {
	// Enabled toggles the memory subsystem.
	// Env: MEMORY_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// Dir is the memory state directory.
	// Env: MEMORY_DIR
	Dir string `envconfig:"DIR"`

	// ShortCap is the short-tier ring capacity.
	// Env: MEMORY_SHORT_CAP (default: 50)
	ShortCap int `envconfig:"SHORT_CAP" default:"50"`

	// TTLDays is the journal entry lifetime in days.
	// Env: MEMORY_TTL_DAYS (default: 7)
	TTLDays int `envconfig:"TTL_DAYS" default:"7"`

	// JournalLimit is the journal entry cap.
	// Env: MEMORY_JOURNAL_LIMIT (default: 500)
	JournalLimit int `envconfig:"JOURNAL_LIMIT" default:"500"`
}

// WatchdogEnv holds environment configuration for the watcher.
type WatchdogEnv struct {
	// Enabled toggles the watcher in serve mode.
	// Env: WATCHDOG_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// PollInterval is the discovery interval in seconds, floored at 60.
	// Env: WATCHDOG_POLL_INTERVAL (default: 600)
	PollInterval float64 `envconfig:"POLL_INTERVAL" default:"600"`

	// PendingInterval is the pending-drain interval in seconds, floored at 60.
	// Env: WATCHDOG_PENDING_INTERVAL (default: 600)
	PendingInterval float64 `envconfig:"PENDING_INTERVAL" default:"600"`
}

// StandardsEnv holds environment configuration for the standards loader.
type StandardsEnv struct {
	// Repo is the standards repository URL.
	// Env: STANDARDS_REPO
	Repo string `envconfig:"REPO"`

	// Dir is a local standards directory, used instead of Repo when set.
	// Env: STANDARDS_DIR
	Dir string `envconfig:"DIR"`

	// Subpath restricts loading to a path within the repo.
	// Env: STANDARDS_SUBPATH
	Subpath string `envconfig:"SUBPATH"`

	// Branch is the repo branch to fetch.
	// Env: STANDARDS_BRANCH (default: master)
	Branch string `envconfig:"BRANCH" default:"master"`
}

// LoadFromEnv loads configuration from environment variables. Unknown
// variables are ignored.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize resolves deprecated aliases. HELP_SOURCE_BASE is canonical;
// when only HELP_SOURCES_DIR is set its value is adopted with a
// deprecation warning. When both are set they must agree, and the
// canonical name wins.
func (e EnvConfig) Normalize() EnvConfig {
	if e.SourceBase == "" && e.SourcesDirAlias != "" {
		slog.Warn("HELP_SOURCES_DIR is deprecated, use HELP_SOURCE_BASE")
		e.SourceBase = e.SourcesDirAlias
	}
	return e
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	ingest := NewIngestConfig().
		WithSourceBase(e.SourceBase).
		WithLanguages(ParseLanguages(e.Languages)).
		WithTempRoot(e.IngestTemp).
		WithWorkers(e.IngestWorkers).
		WithIndexBatchSize(e.IndexBatchSize).
		WithFailedLogPath(e.IngestFailedLog).
		WithStatusFilePath(e.IngestStatusFile)

	embedding := NewEmbeddingConfig().
		WithBackend(e.Embedding.Backend).
		WithModel(e.Embedding.Model).
		WithBaseURL(e.Embedding.BaseURL).
		WithAPIKey(e.Embedding.APIKey).
		WithDimension(e.Embedding.Dim).
		WithBatchSize(e.Embedding.BatchSize).
		WithForceBatch(e.Embedding.ForceBatch).
		WithWorkers(e.Embedding.Workers).
		WithMaxInputChars(e.Embedding.MaxInputChars).
		WithTimeout(seconds(e.Embedding.Timeout)).
		WithMaxConcurrent(e.Embedding.MaxConcurrent).
		WithSemaphoreWait(seconds(e.Embedding.SemaphoreWait)).
		WithRetryAttempts(e.Embedding.RetryAttempts).
		WithInitialDelay(seconds(e.Embedding.InitialDelay)).
		WithModelCacheDir(e.Embedding.ModelCacheDir)

	qdrant := NewQdrantConfig().
		WithHost(e.Qdrant.Host).
		WithPort(e.Qdrant.Port).
		WithRestPort(e.Qdrant.RestPort).
		WithAPIKey(e.Qdrant.APIKey).
		WithCollection(e.Qdrant.Collection).
		WithMemoryCollection(e.Qdrant.MemoryCollection).
		WithUseTLS(e.Qdrant.UseTLS)

	memory := NewMemoryConfig().
		WithEnabled(e.Memory.Enabled).
		WithBaseDir(e.Memory.Dir).
		WithShortCap(e.Memory.ShortCap).
		WithJournalTTL(time.Duration(e.Memory.TTLDays) * 24 * time.Hour).
		WithJournalLimit(e.Memory.JournalLimit)

	watcher := NewWatcherConfig().
		WithEnabled(e.Watchdog.Enabled).
		WithPollInterval(seconds(e.Watchdog.PollInterval)).
		WithPendingInterval(seconds(e.Watchdog.PendingInterval))

	tools := NewToolConfig().
		WithRateLimitRPM(e.ToolRateLimitRPM).
		WithMaxInputBytes(e.ToolMaxInputBytes)

	snippets := NewSnippetsConfig().
		WithDir(e.SnippetsDir).
		WithStandardsRepo(e.Standards.Repo).
		WithStandardsDir(e.Standards.Dir).
		WithStandardsSubpath(e.Standards.Subpath).
		WithStandardsBranch(e.Standards.Branch)

	opts := []AppConfigOption{
		WithHost(e.Host),
		WithPort(e.Port),
		WithMCPPath(e.MCPPath),
		WithLogLevel(e.LogLevel),
		WithLogFormat(ParseLogFormat(e.LogFormat)),
		WithProduction(e.Production),
		WithQdrant(qdrant),
		WithEmbedding(embedding),
		WithIngest(ingest),
		WithMemory(memory),
		WithWatcher(watcher),
		WithTools(tools),
		WithSnippets(snippets),
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}

	return NewAppConfig(opts...)
}

// ParseLogFormat parses a log format string, defaulting to pretty.
func ParseLogFormat(s string) LogFormat {
	if s == string(LogFormatJSON) {
		return LogFormatJSON
	}
	return LogFormatPretty
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
