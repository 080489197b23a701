// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package history

import "time"

// Group is an ordered batch of operations undone and redone as one unit.
// It is append-only while open; the engine discards empty groups instead
// of pushing them onto the stack.
type Group struct {
	Operations  []*Operation `json:"operations"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewGroup starts an empty group stamped with the current time.
func NewGroup(description string) *Group {
	return &Group{Description: description, Timestamp: time.Now()}
}

// Add appends op to the group.
func (g *Group) Add(op *Operation) {
	g.Operations = append(g.Operations, op)
}

// Empty reports whether the group holds no operations.
func (g *Group) Empty() bool {
	return len(g.Operations) == 0
}

// Len returns the number of operations in the group.
func (g *Group) Len() int {
	return len(g.Operations)
}
