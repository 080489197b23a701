// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package history

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
)

// Serialized layout. Stack entries carry an explicit type tag so the
// Operation/Group variants survive the round trip.
type persistedState struct {
	UndoStack     []persistedItem    `json:"undo_stack"`
	RedoStack     []persistedItem    `json:"redo_stack"`
	CurrentBranch string             `json:"current_branch"`
	Branches      map[string]*Branch `json:"branches"`
}

type persistedItem struct {
	Type      string     `json:"type"`
	Operation *Operation `json:"operation,omitempty"`
	Group     *Group     `json:"group,omitempty"`
}

const (
	itemTypeOperation = "operation"
	itemTypeGroup     = "group"
)

func encodeItems(items []Item) []persistedItem {
	out := make([]persistedItem, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case *Operation:
			out = append(out, persistedItem{Type: itemTypeOperation, Operation: v})
		case *Group:
			out = append(out, persistedItem{Type: itemTypeGroup, Group: v})
		}
	}
	return out
}

func decodeItems(items []persistedItem) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		switch {
		case item.Type == itemTypeOperation && item.Operation != nil:
			out = append(out, item.Operation)
		case item.Type == itemTypeGroup && item.Group != nil:
			out = append(out, item.Group)
		default:
			return nil, inkerr.Errorf(inkerr.CodeHistoryPersistInvalid, "unknown history item type %q", item.Type)
		}
	}
	return out, nil
}

// persist serializes the full engine state to the configured path. Best
// effort: failures are logged and the in-memory mutation stands.
func (e *Engine) persist() {
	if e.persistPath == "" {
		return
	}
	if err := e.save(); err != nil {
		slog.Error("saving history state", "path", e.persistPath, "error", err)
	}
}

func (e *Engine) save() error {
	state := persistedState{
		UndoStack:     encodeItems(e.undo),
		RedoStack:     encodeItems(e.redo),
		CurrentBranch: e.currentBranch,
		Branches:      e.branches,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return inkerr.Wrap(err, inkerr.CodeHistoryPersistWriteFailure, "encoding history state")
	}

	if err := os.MkdirAll(filepath.Dir(e.persistPath), 0o750); err != nil {
		return inkerr.Wrap(err, inkerr.CodeHistoryPersistWriteFailure, "creating history directory")
	}

	// Write-then-rename so a crash mid-write can't truncate the
	// previous state.
	tmp := e.persistPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return inkerr.Wrap(err, inkerr.CodeHistoryPersistWriteFailure, "writing history state")
	}
	if err := os.Rename(tmp, e.persistPath); err != nil {
		return inkerr.Wrap(err, inkerr.CodeHistoryPersistWriteFailure, "replacing history state")
	}
	return nil
}

// load hydrates engine state from the persistence path. A missing file
// leaves the fresh defaults; read or decode failures are logged and the
// defaults stand.
func (e *Engine) load() {
	data, err := os.ReadFile(e.persistPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("reading history state", "path", e.persistPath, "error", err)
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Error("decoding history state", "path", e.persistPath, "error", err)
		return
	}

	undo, err := decodeItems(state.UndoStack)
	if err != nil {
		slog.Error("decoding history state", "path", e.persistPath, "error", err)
		return
	}
	redo, err := decodeItems(state.RedoStack)
	if err != nil {
		slog.Error("decoding history state", "path", e.persistPath, "error", err)
		return
	}

	e.undo = trimOldest(undo, e.maxHistory)
	e.redo = trimOldest(redo, e.maxHistory)

	if len(state.Branches) > 0 {
		e.branches = state.Branches
	}
	if _, ok := e.branches[MainBranch]; !ok {
		e.branches[MainBranch] = newBranch(MainBranch, "", 0, e.branchCapacity)
	}
	for _, b := range e.branches {
		b.setCapacity(e.branchCapacity)
	}

	e.currentBranch = state.CurrentBranch
	if _, ok := e.branches[e.currentBranch]; !ok {
		e.currentBranch = MainBranch
	}

	slog.Info("history state loaded", "path", e.persistPath, "operations", len(e.undo))
}

// trimOldest drops leading entries when a loaded stack exceeds the
// configured bound; the bound may have shrunk between runs.
func trimOldest(items []Item, max int) []Item {
	if len(items) > max {
		return items[len(items)-max:]
	}
	return items
}
