// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkstone-dev/inkstone/internal/config"
	"github.com/inkstone-dev/inkstone/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the undo history",
		Long:  "List, summarize, and clear the persisted undo/redo history.",
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryStatsCmd(),
		newHistoryClearCmd(),
	)

	return cmd
}

// openHistory hydrates an engine from the configured state file. With
// no persistence path the engine starts empty, which a listing command
// reports as empty history.
func openHistory() (*history.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	statePath := cfg.HistoryStatePath()
	config.WarnInsecurePermissions(statePath)

	eng := history.NewEngine(history.Config{
		MaxHistory:      cfg.History.MaxHistory,
		AutoMerge:       cfg.History.AutoMerge,
		PersistencePath: statePath,
	})
	return eng, cfg, nil
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded operations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := openHistory()
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			entries := eng.History(limit)
			out := cmd.OutOrStdout()

			if len(entries) == 0 {
				_, err := fmt.Fprintln(out, "History is empty")
				return err
			}

			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "%s  %-18s %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Description)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum number of entries to show")

	return cmd
}

func newHistoryStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the undo history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := openHistory()
			if err != nil {
				return err
			}

			stats := eng.Stats()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Undo entries:   %d\n", stats.UndoCount)
			_, _ = fmt.Fprintf(out, "Redo entries:   %d\n", stats.RedoCount)
			_, _ = fmt.Fprintf(out, "Branches:       %d\n", stats.Branches)
			_, _ = fmt.Fprintf(out, "Current branch: %s\n", stats.CurrentBranch)
			_, _ = fmt.Fprintf(out, "Max history:    %d\n", stats.MaxHistory)
			_, _ = fmt.Fprintf(out, "Auto-merge:     %t\n", stats.AutoMerge)
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the persisted undo history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cfg, err := openHistory()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cfg.HistoryStatePath() == "" {
				_, err := fmt.Fprintln(out, "history.persistence_path is not configured; nothing to clear")
				return err
			}

			stats := eng.Stats()
			eng.Clear()
			_, err = fmt.Fprintf(out, "Cleared %d undo and %d redo entries\n", stats.UndoCount, stats.RedoCount)
			return err
		},
	}
}
