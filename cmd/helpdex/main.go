// Package main is the entry point for the helpdex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex"
	"github.com/helpdex/helpdex/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "helpdex",
		Short: "1C:Enterprise help index and MCP server",
		Long:  `Helpdex ingests 1C:Enterprise help archives (.hbk), indexes their topics into a vector store, and serves them to AI agents over the Model Context Protocol.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(indexStatusCmd())
	cmd.AddCommand(loadSnippetsCmd())
	cmd.AddCommand(loadStandardsCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(snapshotCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from a .env file and the environment.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newClient builds a client from the loaded configuration.
func newClient(cfg config.AppConfig, extra ...helpdex.Option) (*helpdex.Client, error) {
	opts := append([]helpdex.Option{helpdex.WithConfig(cfg)}, extra...)
	client, err := helpdex.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create helpdex client: %w", err)
	}
	return client, nil
}
