package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex/application/service"
)

func indexStatusCmd() *cobra.Command {
	var (
		envFile  string
		jsonOut  bool
		fileOnly bool
	)

	cmd := &cobra.Command{
		Use:   "index-status",
		Short: "Report index contents and ingest progress",
		Long: `Report the vector store point counts, the known versions and
languages, and the last persisted ingest status.

--file reads only the persisted status record without touching the
vector store, which works while another process is ingesting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexStatus(envFile, jsonOut, fileOnly)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&fileOnly, "file", false, "Read only the persisted status record")

	return cmd
}

func runIndexStatus(envFile string, jsonOut, fileOnly bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	if fileOnly {
		record, err := service.ReadStatus(cfg.Ingest().StatusFilePath())
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		return printJSON(record)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	topics, memoryPoints, err := client.Search.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count index points: %w", err)
	}
	versions, languages, err := client.Search.Inventory(ctx)
	if err != nil {
		return fmt.Errorf("scan index inventory: %w", err)
	}
	record := client.Ingest.Status()

	if jsonOut {
		return printJSON(map[string]any{
			"topics":        topics,
			"memory_points": memoryPoints,
			"versions":      versions,
			"languages":     languages,
			"ingest":        record,
		})
	}

	fmt.Printf("topics:        %d\n", topics)
	fmt.Printf("memory points: %d\n", memoryPoints)
	fmt.Printf("versions:      %s\n", joinOrDash(versions))
	fmt.Printf("languages:     %s\n", joinOrDash(languages))
	fmt.Printf("ingest phase:  %s\n", record.Phase)
	if record.ArchivesTotal > 0 {
		fmt.Printf("archives:      %d/%d done, %d failed\n",
			record.ArchivesDone, record.ArchivesTotal, record.ArchivesFailed)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
