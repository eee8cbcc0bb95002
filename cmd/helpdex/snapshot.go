package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/helpdex/helpdex/domain/search"
)

func snapshotCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage vector-store collection snapshots",
		Long: `Create, list, and restore server-side snapshots of the help-topics
collection. Restore accepts a snapshot name on the same server, a
snapshot download URL from another host, or a file path reachable by
the server, which makes snapshots the migration path between hosts.`,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Take a snapshot and print its name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(envFile, func(ctx context.Context, snap search.Snapshotter) error {
				return runSnapshotCreate(ctx, snap, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List existing snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(envFile, func(ctx context.Context, snap search.Snapshotter) error {
				return runSnapshotList(ctx, snap, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <location>",
		Short: "Recover the collection from a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(envFile, func(ctx context.Context, snap search.Snapshotter) error {
				return runSnapshotRestore(ctx, snap, args[0])
			})
		},
	})

	return cmd
}

func withSnapshots(envFile string, fn func(context.Context, search.Snapshotter) error) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return fn(context.Background(), client.Snapshots())
}

func runSnapshotCreate(ctx context.Context, snap search.Snapshotter, out io.Writer) error {
	name, err := snap.SnapshotCreate(ctx)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	fmt.Fprintln(out, name)
	return nil
}

func runSnapshotList(ctx context.Context, snap search.Snapshotter, out io.Writer) error {
	names, err := snap.SnapshotList(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func runSnapshotRestore(ctx context.Context, snap search.Snapshotter, location string) error {
	if err := snap.SnapshotRestore(ctx, location); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}
