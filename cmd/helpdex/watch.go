package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex"
	"github.com/helpdex/helpdex/internal/config"
	"github.com/helpdex/helpdex/internal/log"
)

func watchCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the source roots and re-ingest changed archives",
		Long: `Run the source watcher in the foreground without the MCP server.

Changed or new .hbk archives are re-ingested as they appear, and
pending memory writes are retried on their own timer. The serve
command runs the same watcher in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runWatch(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	// The dedicated watch command always watches, regardless of the
	// serve-mode toggle.
	cfg = config.NewAppConfig(seedConfig(cfg),
		config.WithWatcher(cfg.Watcher().WithEnabled(true)))

	logger := log.Configure(cfg)
	slogger := logger.Slog()

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
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slogger.Info("stopping watcher")
	client.Stop()
	return nil
}
