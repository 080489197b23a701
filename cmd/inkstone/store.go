// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/internal/vectorstore"
	_ "github.com/inkstone-dev/inkstone/internal/vectorstore/sqlite"
	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the vector store",
		Long:  "Inspect the vector store and create or restore snapshots. Commands that need query embeddings live in the host application, not here.",
	}

	cmd.AddCommand(
		newStoreStatsCmd(),
		newStoreBackendsCmd(),
		newStoreSnapshotCmd(),
		newStoreRestoreCmd(),
		newStoreSnapshotsCmd(),
	)

	return cmd
}

// openStore builds a manager on the configured backend without an
// embedding adapter; every store subcommand works on stored data only.
func openStore() (*vectorstore.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			return nil, inkerr.Errorf(inkerr.CodeCLISetupFailure, "creating data directory: %w", err)
		}
	}

	return vectorstore.NewManager(vectorstore.Config{
		Backend:    cfg.VectorStore.Backend,
		AutoSwitch: cfg.VectorStore.AutoSwitch,
		PersistDir: cfg.VectorStoreDir(),
		Collection: cfg.VectorStore.Collection,
		Dimensions: cfg.VectorStore.Dimensions,
		LockPath:   cfg.VectorStoreLockPath(),
	}, nil)
}

func newStoreStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector store statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			stats, err := m.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Backend:    %s\n", stats.Backend)
			_, _ = fmt.Fprintf(out, "Collection: %s\n", stats.Collection)
			_, _ = fmt.Fprintf(out, "Documents:  %d\n", stats.Count)
			_, _ = fmt.Fprintf(out, "Size:       %d bytes\n", stats.SizeBytes)
			return nil
		},
	}
}

func newStoreBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List known vector store backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, b := range vectorstore.SupportedBackends() {
				state := "stub"
				if b.Implemented {
					state = "available"
				}
				_, _ = fmt.Fprintf(out, "%-10s %s\n", b.Name, state)
			}
			return nil
		},
	}
}

func newStoreSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [name]",
		Short: "Create a named snapshot of the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.CreateSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created snapshot %q\n", args[0])
			return err
		},
	}
}

func newStoreRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [name]",
		Short: "Replace the collection with a snapshot's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.RestoreSnapshot(args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot %q\n", args[0])
			return err
		},
	}
}

func newStoreSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			infos, err := m.ListSnapshots()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				_, err := fmt.Fprintln(out, "No snapshots found")
				return err
			}

			for _, info := range infos {
				created := "unknown"
				if !info.CreatedAt.IsZero() {
					created = info.CreatedAt.Local().Format("2006-01-02 15:04:05")
				}
				_, _ = fmt.Fprintf(out, "%-20s %s  %6d docs  %10d bytes\n",
					info.Name, created, info.Count, info.SizeBytes)
			}
			return nil
		},
	}
}
