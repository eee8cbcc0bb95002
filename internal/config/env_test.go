package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/mcp", cfg.MCPPath)
	assert.Equal(t, "", cfg.DataDir)
	assert.Equal(t, "", cfg.DBURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.False(t, cfg.Production)

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "help_topics", cfg.Qdrant.Collection)
	assert.Equal(t, "help_memory", cfg.Qdrant.MemoryCollection)

	assert.Equal(t, "local", cfg.Embedding.Backend)
	assert.Equal(t, 384, cfg.Embedding.Dim)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)

	assert.True(t, cfg.Memory.Enabled)
	assert.Equal(t, 50, cfg.Memory.ShortCap)
	assert.Equal(t, 7, cfg.Memory.TTLDays)
	assert.Equal(t, 500, cfg.Memory.JournalLimit)

	assert.True(t, cfg.Watchdog.Enabled)
	assert.Equal(t, 600.0, cfg.Watchdog.PollInterval)

	assert.Equal(t, 60, cfg.ToolRateLimitRPM)
	assert.Equal(t, 65536, cfg.ToolMaxInputBytes)
	assert.Equal(t, "master", cfg.Standards.Branch)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("HELP_SOURCE_BASE", "/mnt/help")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("EMBEDDING_BACKEND", "openai_api")
	t.Setenv("EMBEDDING_BASE_URL", "https://llm.example/v1")
	t.Setenv("MEMORY_ENABLED", "false")
	t.Setenv("TOOL_RATE_LIMIT_RPM", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/mnt/help", cfg.SourceBase)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "openai_api", cfg.Embedding.Backend)
	assert.Equal(t, "https://llm.example/v1", cfg.Embedding.BaseURL)
	assert.False(t, cfg.Memory.Enabled)
	assert.Equal(t, 5, cfg.ToolRateLimitRPM)
}

func TestNormalize_SourceAlias(t *testing.T) {
	cfg := EnvConfig{SourcesDirAlias: "/old/help"}
	normalized := cfg.Normalize()
	assert.Equal(t, "/old/help", normalized.SourceBase,
		"deprecated alias adopted when the canonical name is unset")

	both := EnvConfig{SourceBase: "/new/help", SourcesDirAlias: "/old/help"}
	assert.Equal(t, "/new/help", both.Normalize().SourceBase,
		"canonical name wins over the alias")
}

func TestToAppConfig(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DATA_DIR", "/srv/helpdex")
	t.Setenv("HELP_LANGUAGES", "ru,en")
	t.Setenv("MEMORY_TTL_DAYS", "3")
	t.Setenv("WATCHDOG_POLL_INTERVAL", "120")

	envCfg, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := envCfg.Normalize().ToAppConfig()

	assert.Equal(t, "/srv/helpdex", cfg.DataDir())
	assert.Equal(t, []string{"ru", "en"}, cfg.Ingest().Languages())
	assert.Equal(t, 3*24*time.Hour, cfg.Memory().JournalTTL())
	assert.Equal(t, 120*time.Second, cfg.Watcher().PollInterval())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnvVars(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PORT=7070\nQDRANT_COLLECTION=custom_topics\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port())
	assert.Equal(t, "custom_topics", cfg.Qdrant().Collection())
}

func TestLoadConfig_EnvWinsOverDotEnv(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PORT", "6060")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PORT=7070\n"), 0o644))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port())
}

// clearEnvVars unsets every variable the loader reads so host
// environment leakage cannot skew the assertions.
func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"HOST", "PORT", "MCP_PATH", "DATA_DIR", "DB_URL",
		"LOG_LEVEL", "LOG_FORMAT", "PRODUCTION",
		"HELP_SOURCE_BASE", "HELP_SOURCES_DIR", "HELP_LANGUAGES",
		"HELP_INGEST_TEMP", "INGEST_WORKERS", "INDEX_BATCH_SIZE",
		"INGEST_FAILED_LOG", "INGEST_STATUS_FILE",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY",
		"QDRANT_COLLECTION", "QDRANT_MEMORY_COLLECTION", "QDRANT_USE_TLS",
		"EMBEDDING_BACKEND", "EMBEDDING_MODEL", "EMBEDDING_BASE_URL",
		"EMBEDDING_API_KEY", "EMBEDDING_DIM", "EMBEDDING_BATCH_SIZE",
		"EMBEDDING_FORCE_BATCH", "EMBEDDING_WORKERS",
		"EMBEDDING_MAX_INPUT_CHARS", "EMBEDDING_TIMEOUT",
		"EMBEDDING_MAX_CONCURRENT", "EMBEDDING_SEMAPHORE_WAIT",
		"EMBEDDING_RETRY_ATTEMPTS", "EMBEDDING_INITIAL_DELAY",
		"EMBEDDING_MODEL_CACHE_DIR",
		"MEMORY_ENABLED", "MEMORY_DIR", "MEMORY_SHORT_CAP",
		"MEMORY_TTL_DAYS", "MEMORY_JOURNAL_LIMIT",
		"WATCHDOG_ENABLED", "WATCHDOG_POLL_INTERVAL", "WATCHDOG_PENDING_INTERVAL",
		"TOOL_RATE_LIMIT_RPM", "TOOL_MAX_INPUT_BYTES",
		"SNIPPETS_DIR", "STANDARDS_REPO", "STANDARDS_DIR",
		"STANDARDS_SUBPATH", "STANDARDS_BRANCH",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
