// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show resolved configuration and on-disk state",
		Long:  "Print the resolved configuration along with what actually exists on disk, without opening the store.",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "Config file:    %s\n", orNone(viper.ConfigFileUsed()))
	_, _ = fmt.Fprintf(out, "Data dir:       %s\n", orNone(cfg.DataDir))

	statePath := cfg.HistoryStatePath()
	switch {
	case statePath == "":
		_, _ = fmt.Fprintln(out, "History:        memory only")
	case !exists(statePath):
		_, _ = fmt.Fprintf(out, "History:        %s (no state yet)\n", statePath)
	default:
		_, _ = fmt.Fprintf(out, "History:        %s\n", statePath)
	}

	_, _ = fmt.Fprintf(out, "Store backend:  %s (auto_switch=%t)\n", cfg.VectorStore.Backend, cfg.VectorStore.AutoSwitch)
	_, _ = fmt.Fprintf(out, "Collection:     %s (%d dimensions)\n", cfg.VectorStore.Collection, cfg.VectorStore.Dimensions)

	dir := cfg.VectorStoreDir()
	if exists(dir) {
		_, _ = fmt.Fprintf(out, "Store dir:      %s\n", dir)
	} else {
		_, _ = fmt.Fprintf(out, "Store dir:      %s (missing)\n", dir)
	}
	_, _ = fmt.Fprintf(out, "Lock file:      %s\n", cfg.VectorStoreLockPath())

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
