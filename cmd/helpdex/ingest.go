package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex"
	"github.com/helpdex/helpdex/application/service"
	"github.com/helpdex/helpdex/internal/config"
	"github.com/helpdex/helpdex/internal/log"
)

func ingestCmd() *cobra.Command {
	var (
		envFile   string
		source    string
		languages string
		recreate  bool
		dryRun    bool
		noCache   bool
		maxTasks  int
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index help archives into the vector store",
		Long: `Discover .hbk archives under the source base, convert their topics
to Markdown, embed them, and upsert them into the vector store.

Unchanged archives (by content hash) are skipped unless --no-cache is
given. --recreate drops the collection and the ingest cache first; it
is the only destructive option.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(envFile, ingestFlags{
				source:    source,
				languages: languages,
				recreate:  recreate,
				dryRun:    dryRun,
				noCache:   noCache,
				maxTasks:  maxTasks,
				workers:   workers,
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&source, "source", "", "Archive source root (overrides HELP_SOURCE_BASE)")
	cmd.Flags().StringVar(&languages, "languages", "", "Language filter, comma-separated (overrides HELP_LANGUAGES)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and rebuild the collection and cache")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be done without indexing")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Reprocess archives even when cached as indexed")
	cmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "Cap the number of archives processed (0: no cap)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Per-archive worker count (0: configured default)")

	return cmd
}

type ingestFlags struct {
	source    string
	languages string
	recreate  bool
	dryRun    bool
	noCache   bool
	maxTasks  int
	workers   int
}

func runIngest(envFile string, flags ingestFlags) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.Configure(cfg)
	slogger := logger.Slog()

	var extra []helpdex.Option
	if flags.source != "" {
		extra = append(extra, helpdex.WithSourceBase(flags.source))
	}
	client, err := newClient(cfg, append(extra, helpdex.WithLogger(slogger))...)
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
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slogger.Info("interrupt received, stopping ingest")
		cancel()
	}()

	opts := service.RunOptions{
		Recreate: flags.recreate,
		DryRun:   flags.dryRun,
		NoCache:  flags.noCache,
		MaxTasks: flags.maxTasks,
		Workers:  flags.workers,
	}
	if flags.languages != "" {
		opts.Languages = config.ParseLanguages(flags.languages)
	}

	summary, err := client.Ingest.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("discovered: %d\n", summary.Discovered)
	fmt.Printf("skipped:    %d\n", summary.Skipped)
	fmt.Printf("indexed:    %d\n", summary.Indexed)
	fmt.Printf("failed:     %d\n", summary.Failed)
	fmt.Printf("topics:     %d\n", summary.Topics)
	if summary.Degraded {
		fmt.Println("degraded:   some topics carry placeholder vectors")
	}
	return nil
}
