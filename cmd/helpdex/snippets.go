package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex"
	"github.com/helpdex/helpdex/application/service"
	"github.com/helpdex/helpdex/internal/log"
)

func loadSnippetsCmd() *cobra.Command {
	var (
		envFile string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "load-snippets [dir]",
		Short: "Load community snippets into the shared memory",
		Long: `Walk a directory of snippet files and save each one into the
long-term memory. Supported formats: .json (single object or array),
.md with YAML front matter and a fenced code block, and raw .bsl/.os
code files.

Snippets are content-addressed by title and code, so re-running the
loader updates entries instead of duplicating them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				dir = args[0]
			}
			return runLoadSnippets(envFile, dir)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}

func runLoadSnippets(envFile, dir string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Snippets().Dir()
	}
	if dir == "" {
		return fmt.Errorf("no snippets directory: pass one or set SNIPPETS_DIR")
	}

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

	report, err := client.Snippets.LoadDir(context.Background(), dir)
	if err != nil {
		return fmt.Errorf("load snippets: %w", err)
	}

	fmt.Printf("files:    %d\n", report.Files)
	fmt.Printf("loaded:   %d\n", report.Loaded)
	fmt.Printf("deferred: %d\n", report.Deferred)
	fmt.Printf("skipped:  %d\n", report.Skipped)
	return nil
}

func loadStandardsCmd() *cobra.Command {
	var (
		envFile string
		repo    string
		dir     string
		branch  string
		subpath string
	)

	cmd := &cobra.Command{
		Use:   "load-standards",
		Short: "Load development standards into the shared memory",
		Long: `Load 1C development standards documents into the standards memory
domain, either from a local directory or by fetching a GitHub
repository archive. Each document is summarized to its heading and
first paragraph before embedding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadStandards(envFile, repo, dir, branch, subpath)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository, owner/name (overrides STANDARDS_REPO)")
	cmd.Flags().StringVar(&dir, "dir", "", "Local standards directory (overrides STANDARDS_DIR)")
	cmd.Flags().StringVar(&branch, "branch", "", "Repository branch (default: master)")
	cmd.Flags().StringVar(&subpath, "subpath", "", "Restrict loading to a path within the repo")

	return cmd
}

func runLoadStandards(envFile, repo, dir, branch, subpath string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if repo == "" {
		repo = cfg.Snippets().StandardsRepo()
	}
	if dir == "" {
		dir = cfg.Snippets().StandardsDir()
	}
	if branch == "" {
		branch = cfg.Snippets().StandardsBranch()
	}
	if subpath == "" {
		subpath = cfg.Snippets().StandardsSubpath()
	}
	if repo == "" && dir == "" {
		return fmt.Errorf("no standards source: pass --repo or --dir, or set STANDARDS_REPO")
	}

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

	ctx := context.Background()
	var report service.LoadReport
	if dir != "" {
		report, err = client.Standards.LoadDir(ctx, dir)
	} else {
		report, err = client.Standards.LoadRepo(ctx, repo, branch, subpath)
	}
	if err != nil {
		return fmt.Errorf("load standards: %w", err)
	}

	fmt.Printf("files:    %d\n", report.Files)
	fmt.Printf("loaded:   %d\n", report.Loaded)
	fmt.Printf("deferred: %d\n", report.Deferred)
	fmt.Printf("skipped:  %d\n", report.Skipped)
	return nil
}
