// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkstone-dev/inkstone/internal/history"
)

// seedHistory records n chapter edits into a state file the CLI can
// then read back.
func seedHistory(t *testing.T, statePath string, n int) {
	t.Helper()

	eng := history.NewEngine(history.Config{
		MaxHistory:      100,
		AutoMerge:       false,
		PersistencePath: statePath,
	})
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("chapter_%d", i)
		eng.Record(history.NewOperation(history.KindEditChapter, id, "old", "new"))
	}
}

func historyConfig(t *testing.T, statePath string) string {
	t.Helper()
	return writeConfig(t, "history:\n  persistence_path: "+statePath+"\n")
}

func TestHistoryListCommand(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "history.json")
	seedHistory(t, statePath, 3)

	out, err := runCLI(t, "history", "list", "--config", historyConfig(t, statePath))
	require.NoError(t, err)
	assert.Contains(t, out, "chapter_2")
	assert.Contains(t, out, "edit_chapter")
}

func TestHistoryListCommand_Limit(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "history.json")
	seedHistory(t, statePath, 5)

	out, err := runCLI(t, "history", "list", "--limit", "2", "--config", historyConfig(t, statePath))
	require.NoError(t, err)

	// Newest first, capped at two entries.
	assert.Contains(t, out, "chapter_4")
	assert.Contains(t, out, "chapter_3")
	assert.NotContains(t, out, "chapter_2")
}

func TestHistoryListCommand_Empty(t *testing.T) {
	cfgPath := writeConfig(t, "history:\n  persistence_path: \"\"\n")

	out, err := runCLI(t, "history", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History is empty")
}

func TestHistoryStatsCommand(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "history.json")
	seedHistory(t, statePath, 4)

	out, err := runCLI(t, "history", "stats", "--config", historyConfig(t, statePath))
	require.NoError(t, err)
	assert.Contains(t, out, "Undo entries:   4")
	assert.Contains(t, out, "Redo entries:   0")
	assert.Contains(t, out, "Current branch: main")
}

func TestHistoryClearCommand(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "history.json")
	seedHistory(t, statePath, 3)
	cfgPath := historyConfig(t, statePath)

	out, err := runCLI(t, "history", "clear", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 3 undo and 0 redo entries")

	// The cleared state is persisted, so a fresh listing sees nothing.
	out, err = runCLI(t, "history", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History is empty")

	_, statErr := os.Stat(statePath)
	assert.NoError(t, statErr, "state file should survive a clear")
}

func TestHistoryClearCommand_NoPersistence(t *testing.T) {
	cfgPath := writeConfig(t, "history:\n  persistence_path: \"\"\n")

	out, err := runCLI(t, "history", "clear", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "not configured")
}
