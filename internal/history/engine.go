// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

// Package history implements the undo/redo engine behind the writing
// studio: bounded operation stacks, adjacent-edit merging, operation
// groups, named branches, synchronous observers, and best-effort
// persistence of the whole state.
//
// The engine records that changes happened; it never applies them.
// Reversing or replaying host state is the job of an external applier
// reacting to observer notifications or to the items returned by Undo
// and Redo.
package history

import (
	"log/slog"
	"sort"
	"time"
)

// MainBranch is the always-present default branch. It cannot be deleted.
const MainBranch = "main"

const (
	DefaultMaxHistory     = 1000
	DefaultBranchCapacity = 1000
	DefaultHistoryLimit   = 50
)

// Event identifies a state change announced to observers.
type Event string

const (
	EventOperationRecorded Event = "operation_recorded"
	EventOperationMerged   Event = "operation_merged"
	EventOperationUndone   Event = "operation_undone"
	EventOperationRedone   Event = "operation_redone"
	EventGroupRecorded     Event = "group_recorded"
	EventBranchCreated     Event = "branch_created"
	EventBranchSwitched    Event = "branch_switched"
	EventBranchDeleted     Event = "branch_deleted"
	EventHistoryCleared    Event = "history_cleared"
)

// Observer receives one synchronous callback per engine mutation, after
// internal state is consistent. The payload depends on the event: the
// recorded/merged item for record events, the popped Item for undo and
// redo, the group for group_recorded, the branch name for
// branch_created/deleted, a BranchSwitch for branch_switched, and nil
// for history_cleared.
type Observer func(event Event, payload any)

// BranchSwitch is the payload of EventBranchSwitched.
type BranchSwitch struct {
	From string
	To   string
}

// Config controls engine capacity, merging, and persistence.
type Config struct {
	// MaxHistory bounds both stacks; the oldest entry is evicted on
	// overflow. Values <= 0 fall back to DefaultMaxHistory.
	MaxHistory int
	// AutoMerge collapses temporally-adjacent compatible edits into a
	// single history entry.
	AutoMerge bool
	// PersistencePath, when non-empty, is the file the full engine
	// state is serialized to after every mutation and hydrated from at
	// construction.
	PersistencePath string
	// BranchCapacity bounds each branch's operation log. Values <= 0
	// fall back to DefaultBranchCapacity.
	BranchCapacity int
}

// DefaultConfig mirrors the defaults the host application ships with.
func DefaultConfig() Config {
	return Config{
		MaxHistory:     DefaultMaxHistory,
		AutoMerge:      true,
		BranchCapacity: DefaultBranchCapacity,
	}
}

// Engine owns the undo/redo stacks, branch table, grouping state, merge
// policy, observer registry, and persistence. It is built for a
// single-threaded cooperative caller: the host serializes access, and
// observers run synchronously on the calling goroutine.
type Engine struct {
	maxHistory     int
	autoMerge      bool
	persistPath    string
	branchCapacity int

	undo []Item
	redo []Item

	branches      map[string]*Branch
	currentBranch string

	grouping bool
	group    *Group

	observers  []observerEntry
	nextHandle int
}

type observerEntry struct {
	handle int
	fn     Observer
}

// NewEngine builds an engine from cfg, hydrating persisted state when
// cfg.PersistencePath names an existing file. Load failures are logged
// and leave the engine with fresh defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.BranchCapacity <= 0 {
		cfg.BranchCapacity = DefaultBranchCapacity
	}

	e := &Engine{
		maxHistory:     cfg.MaxHistory,
		autoMerge:      cfg.AutoMerge,
		persistPath:    cfg.PersistencePath,
		branchCapacity: cfg.BranchCapacity,
		branches:       map[string]*Branch{},
		currentBranch:  MainBranch,
		nextHandle:     1,
	}
	e.branches[MainBranch] = newBranch(MainBranch, "", 0, cfg.BranchCapacity)

	if e.persistPath != "" {
		e.load()
	}
	return e
}

// --- Recording ---

// Record stores one operation. While a group is open the operation is
// appended to it and nothing else changes. Otherwise the operation
// either merges into the top undo entry (auto-merge on, compatible edit
// within the merge window) or is pushed, which clears the redo stack
// and logs the operation on the current branch.
func (e *Engine) Record(op *Operation) {
	if e.grouping && e.group != nil {
		e.group.Add(op)
		return
	}

	if e.autoMerge && len(e.undo) > 0 {
		if last, ok := e.undo[len(e.undo)-1].(*Operation); ok && last.CanMergeWith(op) {
			merged := last.MergeWith(op)
			e.undo[len(e.undo)-1] = merged
			e.notify(EventOperationMerged, merged)
			return
		}
	}

	e.undo = pushBounded(e.undo, op, e.maxHistory)
	e.redo = e.redo[:0]
	e.branches[e.currentBranch].record(op)
	e.notify(EventOperationRecorded, op)
	e.persist()

	slog.Debug("operation recorded", "description", op.Description)
}

// Undo pops the most recent item, moves it to the redo stack, and
// notifies observers. A group's operations are reverse-applied by the
// external applier in reverse order. Returns nil when there is nothing
// to undo.
func (e *Engine) Undo() Item {
	if len(e.undo) == 0 {
		slog.Warn("nothing to undo")
		return nil
	}

	item := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = pushBounded(e.redo, item, e.maxHistory)
	e.notify(EventOperationUndone, item)
	e.persist()

	slog.Info("operation undone", "description", itemDescription(item))
	return item
}

// Redo pops the most recently undone item, moves it back to the undo
// stack, and notifies observers. A group's operations are re-applied in
// original order. Returns nil when there is nothing to redo.
func (e *Engine) Redo() Item {
	if len(e.redo) == 0 {
		slog.Warn("nothing to redo")
		return nil
	}

	item := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = pushBounded(e.undo, item, e.maxHistory)
	e.notify(EventOperationRedone, item)
	e.persist()

	slog.Info("operation redone", "description", itemDescription(item))
	return item
}

// CanUndo reports whether the undo stack is non-empty.
func (e *Engine) CanUndo() bool { return len(e.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (e *Engine) CanRedo() bool { return len(e.redo) > 0 }

// UndoCount returns the undo stack depth.
func (e *Engine) UndoCount() int { return len(e.undo) }

// RedoCount returns the redo stack depth.
func (e *Engine) RedoCount() int { return len(e.redo) }

// LastOperation returns the top undo entry when it is a single
// operation, nil when the stack is empty or the top is a group.
func (e *Engine) LastOperation() *Operation {
	if len(e.undo) == 0 {
		return nil
	}
	op, _ := e.undo[len(e.undo)-1].(*Operation)
	return op
}

// --- Grouping ---

// BeginGroup opens a group so subsequent Record calls batch into one
// undo unit. An already-open group is ended first; that is a warned
// condition, not an error.
func (e *Engine) BeginGroup(description string) {
	if e.grouping {
		slog.Warn("operation group already open, ending it first", "description", e.group.Description)
		e.EndGroup()
	}

	e.grouping = true
	e.group = NewGroup(description)
	slog.Debug("operation group started", "description", description)
}

// EndGroup closes the open group. A non-empty group is pushed as a
// single undo entry and clears the redo stack exactly as Record would;
// an empty group is discarded silently. Calling with no open group is a
// logged no-op.
func (e *Engine) EndGroup() {
	if !e.grouping || e.group == nil {
		slog.Warn("no open operation group to end")
		return
	}

	e.grouping = false
	group := e.group
	e.group = nil

	if !group.Empty() {
		e.undo = pushBounded(e.undo, group, e.maxHistory)
		e.redo = e.redo[:0]
		e.notify(EventGroupRecorded, group)
		slog.Debug("operation group recorded", "description", group.Description, "operations", group.Len())
	}

	e.persist()
}

// --- Branching ---

// CreateBranch forks a new branch off the current one at the present
// undo depth. Returns false when the name is already taken.
func (e *Engine) CreateBranch(name string) bool {
	if _, exists := e.branches[name]; exists {
		slog.Warn("branch already exists", "branch", name)
		return false
	}

	e.branches[name] = newBranch(name, e.currentBranch, len(e.undo), e.branchCapacity)
	e.notify(EventBranchCreated, name)
	e.persist()

	slog.Info("branch created", "branch", name)
	return true
}

// SwitchBranch makes name the active branch. Switching to the branch
// already active is a successful no-op without notification; an unknown
// name fails.
func (e *Engine) SwitchBranch(name string) bool {
	if _, exists := e.branches[name]; !exists {
		slog.Warn("branch does not exist", "branch", name)
		return false
	}
	if name == e.currentBranch {
		return true
	}

	old := e.currentBranch
	e.currentBranch = name
	e.notify(EventBranchSwitched, BranchSwitch{From: old, To: name})
	e.persist()

	slog.Info("branch switched", "from", old, "to", name)
	return true
}

// DeleteBranch removes a branch. The main branch, unknown names, and
// the currently active branch are all refused.
func (e *Engine) DeleteBranch(name string) bool {
	if name == MainBranch {
		slog.Warn("main branch cannot be deleted")
		return false
	}
	if _, exists := e.branches[name]; !exists {
		slog.Warn("branch does not exist", "branch", name)
		return false
	}
	if name == e.currentBranch {
		slog.Warn("active branch cannot be deleted, switch branches first", "branch", name)
		return false
	}

	delete(e.branches, name)
	e.notify(EventBranchDeleted, name)
	e.persist()

	slog.Info("branch deleted", "branch", name)
	return true
}

// Branches lists all branch names, sorted.
func (e *Engine) Branches() []string {
	names := make([]string, 0, len(e.branches))
	for name := range e.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Branch returns the named branch, or nil when unknown.
func (e *Engine) Branch(name string) *Branch {
	return e.branches[name]
}

// CurrentBranch returns the active branch name.
func (e *Engine) CurrentBranch() string {
	return e.currentBranch
}

// --- History ---

// Entry is one row of a history listing.
type Entry struct {
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

// GroupKind is the Entry.Kind reported for operation groups.
const GroupKind = "group"

// History returns up to limit undo entries, newest first. A limit <= 0
// falls back to DefaultHistoryLimit.
func (e *Engine) History(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	start := len(e.undo) - limit
	if start < 0 {
		start = 0
	}

	entries := make([]Entry, 0, len(e.undo)-start)
	for i := len(e.undo) - 1; i >= start; i-- {
		switch v := e.undo[i].(type) {
		case *Operation:
			entries = append(entries, Entry{Description: v.Description, Kind: string(v.Kind), Timestamp: v.Timestamp})
		case *Group:
			entries = append(entries, Entry{Description: v.Description, Kind: GroupKind, Timestamp: v.Timestamp})
		}
	}
	return entries
}

// JumpTo undoes or redoes step by step until the undo depth equals
// index, so external appliers receive one notification per intermediate
// state; cost is linear in the distance. Returns false when index is
// negative or beyond the current depth.
func (e *Engine) JumpTo(index int) bool {
	if index < 0 || index > len(e.undo) {
		slog.Warn("invalid operation index", "index", index)
		return false
	}

	for len(e.undo) > index {
		e.Undo()
	}
	for len(e.undo) < index {
		e.Redo()
	}

	slog.Info("jumped to operation", "index", index)
	return true
}

// Clear drops both stacks and every branch's operation log. The branch
// table itself survives.
func (e *Engine) Clear() {
	e.undo = nil
	e.redo = nil
	for _, b := range e.branches {
		b.clear()
	}
	e.notify(EventHistoryCleared, nil)
	e.persist()

	slog.Info("history cleared")
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	UndoCount     int    `json:"undo_count"`
	RedoCount     int    `json:"redo_count"`
	Branches      int    `json:"branches"`
	CurrentBranch string `json:"current_branch"`
	MaxHistory    int    `json:"max_history"`
	AutoMerge     bool   `json:"auto_merge"`
}

// Stats summarizes the engine for display and diagnostics.
func (e *Engine) Stats() Stats {
	return Stats{
		UndoCount:     len(e.undo),
		RedoCount:     len(e.redo),
		Branches:      len(e.branches),
		CurrentBranch: e.currentBranch,
		MaxHistory:    e.maxHistory,
		AutoMerge:     e.autoMerge,
	}
}

// --- Observers ---

// AddObserver registers fn and returns a handle for removal. Callbacks
// run synchronously in registration order against a snapshot of the
// registry, so an observer may add or remove observers from within a
// callback without corrupting delivery.
func (e *Engine) AddObserver(fn Observer) int {
	handle := e.nextHandle
	e.nextHandle++
	e.observers = append(e.observers, observerEntry{handle: handle, fn: fn})
	return handle
}

// RemoveObserver unregisters the observer identified by handle. Unknown
// handles are ignored.
func (e *Engine) RemoveObserver(handle int) {
	for i, entry := range e.observers {
		if entry.handle == handle {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *Engine) notify(event Event, payload any) {
	snapshot := make([]observerEntry, len(e.observers))
	copy(snapshot, e.observers)

	for _, entry := range snapshot {
		deliver(entry.fn, event, payload)
	}
}

// deliver isolates one observer call: a panicking observer is recovered
// and logged, and never interrupts the remaining observers or the
// triggering mutation.
func deliver(fn Observer, event Event, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("observer panicked", "event", event, "panic", r)
		}
	}()
	fn(event, payload)
}

// pushBounded appends item, evicting the oldest entry once the stack is
// at capacity.
func pushBounded(stack []Item, item Item, max int) []Item {
	if len(stack) >= max {
		stack = stack[1:]
	}
	return append(stack, item)
}
