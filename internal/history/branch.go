// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package history

import "time"

// Branch is a named timeline of operations diverging from a point in its
// parent's history. Parent is a lookup key into the engine's branch
// table, never an owning reference: deleting the parent leaves the name
// dangling, which callers must tolerate.
type Branch struct {
	Name        string       `json:"name"`
	Parent      string       `json:"parent,omitempty"`
	BranchPoint int          `json:"branch_point"`
	Operations  []*Operation `json:"operations"`
	CreatedAt   time.Time    `json:"created_at"`

	capacity int
}

func newBranch(name, parent string, branchPoint, capacity int) *Branch {
	return &Branch{
		Name:        name,
		Parent:      parent,
		BranchPoint: branchPoint,
		CreatedAt:   time.Now(),
		capacity:    capacity,
	}
}

// record appends op to the branch log, evicting the oldest entry once
// the capacity bound is reached.
func (b *Branch) record(op *Operation) {
	if b.capacity > 0 && len(b.Operations) >= b.capacity {
		b.Operations = b.Operations[1:]
	}
	b.Operations = append(b.Operations, op)
}

// setCapacity rebinds the capacity after hydration and trims logs that
// exceed it, oldest first.
func (b *Branch) setCapacity(capacity int) {
	b.capacity = capacity
	if capacity > 0 && len(b.Operations) > capacity {
		b.Operations = b.Operations[len(b.Operations)-capacity:]
	}
}

// Len returns the number of operations logged on this branch.
func (b *Branch) Len() int {
	return len(b.Operations)
}

func (b *Branch) clear() {
	b.Operations = b.Operations[:0]
}
