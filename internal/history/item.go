// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package history

// Item is one entry on the undo or redo stack: a single *Operation, or a
// *Group whose operations travel as a unit. The interface is sealed so
// stack dispatch stays an exhaustive two-case type switch.
type Item interface {
	isHistoryItem()
}

func (*Operation) isHistoryItem() {}
func (*Group) isHistoryItem()     {}

func itemDescription(item Item) string {
	switch v := item.(type) {
	case *Operation:
		return v.Description
	case *Group:
		return v.Description
	default:
		return ""
	}
}
