package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex"
	"github.com/helpdex/helpdex/internal/config"
	"github.com/helpdex/helpdex/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over streamable HTTP",
		Long: `Start the MCP server over streamable HTTP.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  MCP_PATH                     Streamable HTTP mount path (default: /mcp)
  DATA_DIR                     Data directory (default: ~/.helpdex)
  DB_URL                       Ingest cache database URL (default: sqlite://{data_dir}/ingest-cache.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  PRODUCTION                   Mask internal error detail in tool responses (default: false)

  HELP_SOURCE_BASE             Root directory scanned for .hbk archives
  HELP_LANGUAGES               Language filter, comma-separated ("all": no filter)

  QDRANT_*                     Vector store connection
    HOST, PORT                 gRPC endpoint (default: localhost:6334)
    COLLECTION                 Topic collection (default: help_topics)
    MEMORY_COLLECTION          Memory collection (default: help_memory)

  EMBEDDING_*                  Embedding backend
    BACKEND                    local, openai_api, deterministic, none (default: local)
    BASE_URL, API_KEY, MODEL   OpenAI-compatible endpoint settings
    BATCH_SIZE, WORKERS        Batch dispatch settings

  MEMORY_ENABLED               Toggle the memory subsystem (default: true)
  WATCHDOG_ENABLED             Toggle the source watcher (default: true)
  TOOL_RATE_LIMIT_RPM          Per-tool requests per minute (default: 60)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if host != "" {
		cfg = config.NewAppConfig(seedConfig(cfg), config.WithHost(host))
	}
	if port != 0 {
		cfg = config.NewAppConfig(seedConfig(cfg), config.WithPort(port))
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelInfo, "starting helpdex", attrs...)

	client, err := newClient(cfg, helpdex.WithLogger(slogger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close helpdex client", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start background services: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/status", statusHandler(client))
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"helpdex","version":%q,"mcp":%q}`, version, cfg.MCPPath())
	})
	router.Mount(cfg.MCPPath(), client.MCP().StreamableHandler(cfg.MCPPath()))

	addr := fmt.Sprintf("%s:%d", cfg.Host(), cfg.Port())
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("starting server", slog.String("addr", addr), slog.String("mcp_path", cfg.MCPPath()))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// statusHandler exposes the live ingest status record over HTTP.
func statusHandler(client *helpdex.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(client.Ingest.Status())
		if err != nil {
			http.Error(w, `{"error":"status unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func seedConfig(cfg config.AppConfig) config.AppConfigOption {
	return func(out *config.AppConfig) { *out = cfg }
}
