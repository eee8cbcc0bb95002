// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultMCPPath        = "/mcp"
	DefaultLogLevel       = "INFO"
	DefaultQdrantHost     = "localhost"
	DefaultQdrantPort     = 6334
	DefaultQdrantRestPort = 6333
	DefaultCollection     = "help_topics"
	DefaultMemoryCollect  = "help_memory"
	DefaultBackend        = "local"
	DefaultDimension      = 384
	DefaultBatchSize      = 64
	MaxForcedBatchSize    = 256
	DefaultEmbedWorkers   = 4
	MaxForcedEmbedWorkers = 16
	DefaultMaxInputChars  = 2000
	DefaultRetryAttempts  = 3
	DefaultIngestWorkers  = 2
	DefaultIndexBatchSize = 500
	DefaultShortTierCap   = 50
	DefaultJournalLimit   = 500
	DefaultRateLimitRPM   = 60
	DefaultMaxInputBytes  = 64 * 1024
	MinPollSeconds        = 60
	DefaultPollSeconds    = 600
	DefaultPendingSeconds = 600
)

// Default durations.
const (
	DefaultEmbedTimeout  = 60 * time.Second
	MinEmbedTimeout      = 5 * time.Second
	DefaultInitialDelay  = time.Second
	DefaultSemaphoreWait = 300 * time.Second
	DefaultJournalTTL    = 7 * 24 * time.Hour
)

// LogFormat selects the log output encoding.
type LogFormat string

// Log formats.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// QdrantConfig holds the vector-store connection settings.
type QdrantConfig struct {
	host             string
	port             int
	restPort         int
	apiKey           string
	collection       string
	memoryCollection string
	useTLS           bool
}

// NewQdrantConfig creates a QdrantConfig with defaults.
func NewQdrantConfig() QdrantConfig {
	return QdrantConfig{
		host:             DefaultQdrantHost,
		port:             DefaultQdrantPort,
		restPort:         DefaultQdrantRestPort,
		collection:       DefaultCollection,
		memoryCollection: DefaultMemoryCollect,
	}
}

// Host returns the Qdrant host.
func (q QdrantConfig) Host() string { return q.host }

// Port returns the Qdrant gRPC port.
func (q QdrantConfig) Port() int { return q.port }

// RestPort returns the Qdrant HTTP API port, used for snapshot
// recovery.
func (q QdrantConfig) RestPort() int { return q.restPort }

// APIKey returns the Qdrant API key.
func (q QdrantConfig) APIKey() string { return q.apiKey }

// Collection returns the help-topics collection name.
func (q QdrantConfig) Collection() string { return q.collection }

// MemoryCollection returns the memory collection name.
func (q QdrantConfig) MemoryCollection() string { return q.memoryCollection }

// UseTLS reports whether the connection uses TLS.
func (q QdrantConfig) UseTLS() bool { return q.useTLS }

// WithHost sets the host.
func (q QdrantConfig) WithHost(host string) QdrantConfig {
	q.host = host
	return q
}

// WithPort sets the port.
func (q QdrantConfig) WithPort(port int) QdrantConfig {
	q.port = port
	return q
}

// WithRestPort sets the HTTP API port.
func (q QdrantConfig) WithRestPort(port int) QdrantConfig {
	q.restPort = port
	return q
}

// WithAPIKey sets the API key.
func (q QdrantConfig) WithAPIKey(key string) QdrantConfig {
	q.apiKey = key
	return q
}

// WithCollection sets the collection name.
func (q QdrantConfig) WithCollection(name string) QdrantConfig {
	q.collection = name
	return q
}

// WithMemoryCollection sets the memory collection name.
func (q QdrantConfig) WithMemoryCollection(name string) QdrantConfig {
	q.memoryCollection = name
	return q
}

// WithUseTLS sets TLS usage.
func (q QdrantConfig) WithUseTLS(useTLS bool) QdrantConfig {
	q.useTLS = useTLS
	return q
}

// EmbeddingConfig holds the embedding dispatcher settings.
type EmbeddingConfig struct {
	backend       string
	model         string
	baseURL       string
	apiKey        string
	dimension     int
	batchSize     int
	forceBatch    bool
	workers       int
	maxInputChars int
	timeout       time.Duration
	maxConcurrent int
	semaphoreWait time.Duration
	retryAttempts int
	initialDelay  time.Duration
	modelCacheDir string
}

// NewEmbeddingConfig creates an EmbeddingConfig with defaults.
func NewEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		backend:       DefaultBackend,
		dimension:     DefaultDimension,
		batchSize:     DefaultBatchSize,
		workers:       DefaultEmbedWorkers,
		maxInputChars: DefaultMaxInputChars,
		timeout:       DefaultEmbedTimeout,
		maxConcurrent: DefaultEmbedWorkers * 2,
		semaphoreWait: DefaultSemaphoreWait,
		retryAttempts: DefaultRetryAttempts,
		initialDelay:  DefaultInitialDelay,
	}
}

// Backend returns the backend selector.
func (e EmbeddingConfig) Backend() string { return e.backend }

// Model returns the model identifier.
func (e EmbeddingConfig) Model() string { return e.model }

// BaseURL returns the remote endpoint base URL.
func (e EmbeddingConfig) BaseURL() string { return e.baseURL }

// APIKey returns the remote endpoint API key.
func (e EmbeddingConfig) APIKey() string { return e.apiKey }

// Dimension returns the configured vector dimension.
func (e EmbeddingConfig) Dimension() int { return e.dimension }

// BatchSize returns the effective batch size. Without force-batch the
// size is capped at the default; with it, at the forced ceiling.
func (e EmbeddingConfig) BatchSize() int {
	if e.batchSize <= 0 {
		return DefaultBatchSize
	}
	if e.forceBatch {
		if e.batchSize > MaxForcedBatchSize {
			return MaxForcedBatchSize
		}
		return e.batchSize
	}
	if e.batchSize > DefaultBatchSize {
		return DefaultBatchSize
	}
	return e.batchSize
}

// ForceBatch reports whether the force-batch flag is set.
func (e EmbeddingConfig) ForceBatch() bool { return e.forceBatch }

// Workers returns the effective worker count.
func (e EmbeddingConfig) Workers() int {
	ceiling := DefaultEmbedWorkers
	if e.forceBatch {
		ceiling = MaxForcedEmbedWorkers
	}
	if e.workers <= 0 {
		return DefaultEmbedWorkers
	}
	if e.workers > ceiling {
		return ceiling
	}
	return e.workers
}

// MaxInputChars returns the truncation cap for embedding inputs.
func (e EmbeddingConfig) MaxInputChars() int { return e.maxInputChars }

// Timeout returns the single-call timeout, floored at MinEmbedTimeout.
func (e EmbeddingConfig) Timeout() time.Duration {
	if e.timeout < MinEmbedTimeout {
		return MinEmbedTimeout
	}
	return e.timeout
}

// MaxConcurrent returns the global concurrency semaphore size.
func (e EmbeddingConfig) MaxConcurrent() int { return e.maxConcurrent }

// SemaphoreWait returns the bounded semaphore acquire wait.
func (e EmbeddingConfig) SemaphoreWait() time.Duration { return e.semaphoreWait }

// RetryAttempts returns the retry attempt count.
func (e EmbeddingConfig) RetryAttempts() int { return e.retryAttempts }

// InitialDelay returns the first retry delay.
func (e EmbeddingConfig) InitialDelay() time.Duration { return e.initialDelay }

// ModelCacheDir returns the local model cache directory.
func (e EmbeddingConfig) ModelCacheDir() string { return e.modelCacheDir }

// WithBackend sets the backend selector.
func (e EmbeddingConfig) WithBackend(backend string) EmbeddingConfig {
	e.backend = strings.ToLower(strings.TrimSpace(backend))
	return e
}

// WithModel sets the model identifier.
func (e EmbeddingConfig) WithModel(model string) EmbeddingConfig {
	e.model = model
	return e
}

// WithBaseURL sets the remote base URL.
func (e EmbeddingConfig) WithBaseURL(url string) EmbeddingConfig {
	e.baseURL = url
	return e
}

// WithAPIKey sets the remote API key.
func (e EmbeddingConfig) WithAPIKey(key string) EmbeddingConfig {
	e.apiKey = key
	return e
}

// WithDimension sets the vector dimension.
func (e EmbeddingConfig) WithDimension(dim int) EmbeddingConfig {
	if dim > 0 {
		e.dimension = dim
	}
	return e
}

// WithBatchSize sets the batch size.
func (e EmbeddingConfig) WithBatchSize(n int) EmbeddingConfig {
	if n > 0 {
		e.batchSize = n
	}
	return e
}

// WithForceBatch sets the force-batch flag.
func (e EmbeddingConfig) WithForceBatch(force bool) EmbeddingConfig {
	e.forceBatch = force
	return e
}

// WithWorkers sets the worker count.
func (e EmbeddingConfig) WithWorkers(n int) EmbeddingConfig {
	if n > 0 {
		e.workers = n
	}
	return e
}

// WithMaxInputChars sets the truncation cap.
func (e EmbeddingConfig) WithMaxInputChars(n int) EmbeddingConfig {
	if n > 0 {
		e.maxInputChars = n
	}
	return e
}

// WithTimeout sets the single-call timeout.
func (e EmbeddingConfig) WithTimeout(d time.Duration) EmbeddingConfig {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// WithMaxConcurrent sets the semaphore size.
func (e EmbeddingConfig) WithMaxConcurrent(n int) EmbeddingConfig {
	if n > 0 {
		e.maxConcurrent = n
	}
	return e
}

// WithSemaphoreWait sets the bounded semaphore wait.
func (e EmbeddingConfig) WithSemaphoreWait(d time.Duration) EmbeddingConfig {
	if d > 0 {
		e.semaphoreWait = d
	}
	return e
}

// WithRetryAttempts sets the retry attempt count.
func (e EmbeddingConfig) WithRetryAttempts(n int) EmbeddingConfig {
	if n > 0 {
		e.retryAttempts = n
	}
	return e
}

// WithInitialDelay sets the first retry delay.
func (e EmbeddingConfig) WithInitialDelay(d time.Duration) EmbeddingConfig {
	if d > 0 {
		e.initialDelay = d
	}
	return e
}

// WithModelCacheDir sets the local model cache directory.
func (e EmbeddingConfig) WithModelCacheDir(dir string) EmbeddingConfig {
	e.modelCacheDir = dir
	return e
}

// IngestConfig holds the ingest orchestrator settings.
type IngestConfig struct {
	sourceBase     string
	languages      []string
	tempRoot       string
	workers        int
	indexBatchSize int
	failedLogPath  string
	statusFilePath string
}

// NewIngestConfig creates an IngestConfig with defaults.
func NewIngestConfig() IngestConfig {
	return IngestConfig{
		workers:        DefaultIngestWorkers,
		indexBatchSize: DefaultIndexBatchSize,
	}
}

// SourceBase returns the archive source root.
func (i IngestConfig) SourceBase() string { return i.sourceBase }

// Languages returns the language filter; nil means no filter.
func (i IngestConfig) Languages() []string {
	if i.languages == nil {
		return nil
	}
	out := make([]string, len(i.languages))
	copy(out, i.languages)
	return out
}

// TempRoot returns the extraction scratch root.
func (i IngestConfig) TempRoot() string {
	if i.tempRoot == "" {
		return filepath.Join(os.TempDir(), "helpdex-ingest")
	}
	return i.tempRoot
}

// Workers returns the per-archive worker pool size.
func (i IngestConfig) Workers() int {
	if i.workers <= 0 {
		return DefaultIngestWorkers
	}
	return i.workers
}

// IndexBatchSize returns the upsert chunk size.
func (i IngestConfig) IndexBatchSize() int {
	if i.indexBatchSize <= 0 {
		return DefaultIndexBatchSize
	}
	return i.indexBatchSize
}

// FailedLogPath returns the failure log path.
func (i IngestConfig) FailedLogPath() string { return i.failedLogPath }

// StatusFilePath returns the status record path.
func (i IngestConfig) StatusFilePath() string { return i.statusFilePath }

// WithSourceBase sets the source root.
func (i IngestConfig) WithSourceBase(path string) IngestConfig {
	i.sourceBase = path
	return i
}

// WithLanguages sets the language filter.
func (i IngestConfig) WithLanguages(languages []string) IngestConfig {
	if languages != nil {
		i.languages = make([]string, len(languages))
		copy(i.languages, languages)
	}
	return i
}

// WithTempRoot sets the scratch root.
func (i IngestConfig) WithTempRoot(path string) IngestConfig {
	i.tempRoot = path
	return i
}

// WithWorkers sets the worker pool size.
func (i IngestConfig) WithWorkers(n int) IngestConfig {
	if n > 0 {
		i.workers = n
	}
	return i
}

// WithIndexBatchSize sets the upsert chunk size.
func (i IngestConfig) WithIndexBatchSize(n int) IngestConfig {
	if n > 0 {
		i.indexBatchSize = n
	}
	return i
}

// WithFailedLogPath sets the failure log path.
func (i IngestConfig) WithFailedLogPath(path string) IngestConfig {
	i.failedLogPath = path
	return i
}

// WithStatusFilePath sets the status record path.
func (i IngestConfig) WithStatusFilePath(path string) IngestConfig {
	i.statusFilePath = path
	return i
}

// MemoryConfig holds the memory subsystem settings.
type MemoryConfig struct {
	enabled      bool
	baseDir      string
	shortCap     int
	journalTTL   time.Duration
	journalLimit int
}

// NewMemoryConfig creates a MemoryConfig with defaults.
func NewMemoryConfig() MemoryConfig {
	return MemoryConfig{
		enabled:      true,
		shortCap:     DefaultShortTierCap,
		journalTTL:   DefaultJournalTTL,
		journalLimit: DefaultJournalLimit,
	}
}

// Enabled reports whether memory is enabled.
func (m MemoryConfig) Enabled() bool { return m.enabled }

// BaseDir returns the memory state directory.
func (m MemoryConfig) BaseDir() string { return m.baseDir }

// ShortCap returns the short-tier ring capacity.
func (m MemoryConfig) ShortCap() int { return m.shortCap }

// JournalTTL returns the medium-tier entry lifetime.
func (m MemoryConfig) JournalTTL() time.Duration { return m.journalTTL }

// JournalLimit returns the medium-tier entry cap.
func (m MemoryConfig) JournalLimit() int { return m.journalLimit }

// WithEnabled sets the enabled flag.
func (m MemoryConfig) WithEnabled(enabled bool) MemoryConfig {
	m.enabled = enabled
	return m
}

// WithBaseDir sets the state directory.
func (m MemoryConfig) WithBaseDir(dir string) MemoryConfig {
	m.baseDir = dir
	return m
}

// WithShortCap sets the ring capacity.
func (m MemoryConfig) WithShortCap(n int) MemoryConfig {
	if n > 0 {
		m.shortCap = n
	}
	return m
}

// WithJournalTTL sets the journal TTL.
func (m MemoryConfig) WithJournalTTL(d time.Duration) MemoryConfig {
	if d > 0 {
		m.journalTTL = d
	}
	return m
}

// WithJournalLimit sets the journal cap.
func (m MemoryConfig) WithJournalLimit(n int) MemoryConfig {
	if n > 0 {
		m.journalLimit = n
	}
	return m
}

// WatcherConfig holds the source watcher settings.
type WatcherConfig struct {
	enabled         bool
	pollInterval    time.Duration
	pendingInterval time.Duration
}

// NewWatcherConfig creates a WatcherConfig with defaults.
func NewWatcherConfig() WatcherConfig {
	return WatcherConfig{
		enabled:         true,
		pollInterval:    DefaultPollSeconds * time.Second,
		pendingInterval: DefaultPendingSeconds * time.Second,
	}
}

// Enabled reports whether the watcher runs in serve mode.
func (w WatcherConfig) Enabled() bool { return w.enabled }

// PollInterval returns the discovery interval, floored at one minute.
func (w WatcherConfig) PollInterval() time.Duration {
	return floorInterval(w.pollInterval)
}

// PendingInterval returns the pending-drain interval, floored at one minute.
func (w WatcherConfig) PendingInterval() time.Duration {
	return floorInterval(w.pendingInterval)
}

// WithEnabled sets the enabled flag.
func (w WatcherConfig) WithEnabled(enabled bool) WatcherConfig {
	w.enabled = enabled
	return w
}

// WithPollInterval sets the discovery interval.
func (w WatcherConfig) WithPollInterval(d time.Duration) WatcherConfig {
	if d > 0 {
		w.pollInterval = d
	}
	return w
}

// WithPendingInterval sets the pending-drain interval.
func (w WatcherConfig) WithPendingInterval(d time.Duration) WatcherConfig {
	if d > 0 {
		w.pendingInterval = d
	}
	return w
}

func floorInterval(d time.Duration) time.Duration {
	floor := MinPollSeconds * time.Second
	if d < floor {
		return floor
	}
	return d
}

// ToolConfig holds the tool facade settings.
type ToolConfig struct {
	rateLimitRPM  int
	maxInputBytes int
}

// NewToolConfig creates a ToolConfig with defaults.
func NewToolConfig() ToolConfig {
	return ToolConfig{
		rateLimitRPM:  DefaultRateLimitRPM,
		maxInputBytes: DefaultMaxInputBytes,
	}
}

// RateLimitRPM returns the per-operation requests-per-minute budget.
func (t ToolConfig) RateLimitRPM() int { return t.rateLimitRPM }

// MaxInputBytes returns the input string size cap.
func (t ToolConfig) MaxInputBytes() int { return t.maxInputBytes }

// WithRateLimitRPM sets the RPM budget.
func (t ToolConfig) WithRateLimitRPM(n int) ToolConfig {
	if n > 0 {
		t.rateLimitRPM = n
	}
	return t
}

// WithMaxInputBytes sets the input size cap.
func (t ToolConfig) WithMaxInputBytes(n int) ToolConfig {
	if n > 0 {
		t.maxInputBytes = n
	}
	return t
}

// SnippetsConfig holds snippet and standards loader settings.
type SnippetsConfig struct {
	dir              string
	standardsRepo    string
	standardsDir     string
	standardsSubpath string
	standardsBranch  string
}

// NewSnippetsConfig creates a SnippetsConfig with defaults.
func NewSnippetsConfig() SnippetsConfig {
	return SnippetsConfig{standardsBranch: "master"}
}

// Dir returns the snippets directory.
func (s SnippetsConfig) Dir() string { return s.dir }

// StandardsRepo returns the standards repository URL.
func (s SnippetsConfig) StandardsRepo() string { return s.standardsRepo }

// StandardsDir returns the local standards directory.
func (s SnippetsConfig) StandardsDir() string { return s.standardsDir }

// StandardsSubpath returns the subpath within the standards repo.
func (s SnippetsConfig) StandardsSubpath() string { return s.standardsSubpath }

// StandardsBranch returns the standards repo branch.
func (s SnippetsConfig) StandardsBranch() string { return s.standardsBranch }

// WithDir sets the snippets directory.
func (s SnippetsConfig) WithDir(dir string) SnippetsConfig {
	s.dir = dir
	return s
}

// WithStandardsRepo sets the repository URL.
func (s SnippetsConfig) WithStandardsRepo(repo string) SnippetsConfig {
	s.standardsRepo = repo
	return s
}

// WithStandardsDir sets the local directory.
func (s SnippetsConfig) WithStandardsDir(dir string) SnippetsConfig {
	s.standardsDir = dir
	return s
}

// WithStandardsSubpath sets the repo subpath.
func (s SnippetsConfig) WithStandardsSubpath(subpath string) SnippetsConfig {
	s.standardsSubpath = subpath
	return s
}

// WithStandardsBranch sets the repo branch.
func (s SnippetsConfig) WithStandardsBranch(branch string) SnippetsConfig {
	s.standardsBranch = branch
	return s
}

// AppConfig is the immutable application configuration assembled from
// the environment and programmatic options.
type AppConfig struct {
	host       string
	port       int
	mcpPath    string
	dataDir    string
	dbURL      string
	logLevel   string
	logFormat  LogFormat
	production bool
	qdrant     QdrantConfig
	embedding  EmbeddingConfig
	ingest     IngestConfig
	memory     MemoryConfig
	watcher    WatcherConfig
	tools      ToolConfig
	snippets   SnippetsConfig
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// NewAppConfig creates an AppConfig with defaults applied.
func NewAppConfig(opts ...AppConfigOption) AppConfig {
	cfg := AppConfig{
		host:      DefaultHost,
		port:      DefaultPort,
		mcpPath:   DefaultMCPPath,
		dataDir:   defaultDataDir(),
		logLevel:  DefaultLogLevel,
		logFormat: LogFormatPretty,
		qdrant:    NewQdrantConfig(),
		embedding: NewEmbeddingConfig(),
		ingest:    NewIngestConfig(),
		memory:    NewMemoryConfig(),
		watcher:   NewWatcherConfig(),
		tools:     NewToolConfig(),
		snippets:  NewSnippetsConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helpdex"
	}
	return filepath.Join(home, ".helpdex")
}

// Host returns the serve host.
func (c AppConfig) Host() string { return c.host }

// Port returns the serve port.
func (c AppConfig) Port() int { return c.port }

// MCPPath returns the streamable HTTP mount path.
func (c AppConfig) MCPPath() string { return c.mcpPath }

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the ingest cache database URL, defaulting to a sqlite
// file under the data directory.
func (c AppConfig) DBURL() string {
	if c.dbURL == "" {
		return "sqlite://" + filepath.Join(c.dataDir, "ingest-cache.db")
	}
	return c.dbURL
}

// LogLevel returns the log level name.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// Production reports whether detailed error text is suppressed in tool
// responses.
func (c AppConfig) Production() bool { return c.production }

// Qdrant returns the vector-store settings.
func (c AppConfig) Qdrant() QdrantConfig { return c.qdrant }

// Embedding returns the embedding settings.
func (c AppConfig) Embedding() EmbeddingConfig { return c.embedding }

// Ingest returns the ingest settings with paths defaulted under the
// data directory.
func (c AppConfig) Ingest() IngestConfig {
	i := c.ingest
	if i.failedLogPath == "" {
		i.failedLogPath = filepath.Join(c.dataDir, "ingest-failed.log")
	}
	if i.statusFilePath == "" {
		i.statusFilePath = filepath.Join(c.dataDir, "ingest-status.json")
	}
	return i
}

// Memory returns the memory settings with the base directory defaulted
// under the data directory.
func (c AppConfig) Memory() MemoryConfig {
	m := c.memory
	if m.baseDir == "" {
		m.baseDir = filepath.Join(c.dataDir, "memory")
	}
	return m
}

// Watcher returns the watcher settings.
func (c AppConfig) Watcher() WatcherConfig { return c.watcher }

// Tools returns the tool facade settings.
func (c AppConfig) Tools() ToolConfig { return c.tools }

// Snippets returns the snippet loader settings.
func (c AppConfig) Snippets() SnippetsConfig { return c.snippets }

// WithHost sets the serve host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the serve port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithMCPPath sets the streamable HTTP mount path.
func WithMCPPath(path string) AppConfigOption {
	return func(c *AppConfig) {
		if path != "" {
			c.mcpPath = path
		}
	}
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithDBURL sets the ingest cache database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithProduction sets the production flag.
func WithProduction(production bool) AppConfigOption {
	return func(c *AppConfig) { c.production = production }
}

// WithQdrant sets the vector-store settings.
func WithQdrant(q QdrantConfig) AppConfigOption {
	return func(c *AppConfig) { c.qdrant = q }
}

// WithEmbedding sets the embedding settings.
func WithEmbedding(e EmbeddingConfig) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithIngest sets the ingest settings.
func WithIngest(i IngestConfig) AppConfigOption {
	return func(c *AppConfig) { c.ingest = i }
}

// WithMemory sets the memory settings.
func WithMemory(m MemoryConfig) AppConfigOption {
	return func(c *AppConfig) { c.memory = m }
}

// WithWatcher sets the watcher settings.
func WithWatcher(w WatcherConfig) AppConfigOption {
	return func(c *AppConfig) { c.watcher = w }
}

// WithTools sets the tool facade settings.
func WithTools(t ToolConfig) AppConfigOption {
	return func(c *AppConfig) { c.tools = t }
}

// WithSnippets sets the snippet loader settings.
func WithSnippets(s SnippetsConfig) AppConfigOption {
	return func(c *AppConfig) { c.snippets = s }
}

// PrepareDataDir creates the data directory tree, including the memory
// state directory.
func (c AppConfig) PrepareDataDir() error {
	for _, dir := range []string{c.dataDir, c.Memory().BaseDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return nil
}

// ParseLanguages parses a comma-separated language filter. Empty and
// "all" mean no filter.
func ParseLanguages(s string) []string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LogAttrs returns the startup log attributes with secrets masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("host", c.host),
		slog.Int("port", c.port),
		slog.String("data_dir", c.dataDir),
		slog.String("db_url", maskDBURL(c.DBURL())),
		slog.String("qdrant", fmt.Sprintf("%s:%d", c.qdrant.host, c.qdrant.port)),
		slog.String("collection", c.qdrant.collection),
		slog.String("embedding_backend", c.embedding.backend),
		slog.Bool("production", c.production),
	}
}

// maskDBURL hides credentials embedded in a database URL.
func maskDBURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at == -1 {
		return url
	}
	scheme := strings.Index(url, "://")
	if scheme == -1 || scheme+3 > at {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
