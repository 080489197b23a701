// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package history

import (
	"fmt"
	"time"
)

// Kind identifies the category of a recorded operation.
type Kind string

const (
	KindEditChapter          Kind = "edit_chapter"
	KindAddChapter           Kind = "add_chapter"
	KindDeleteChapter        Kind = "delete_chapter"
	KindBatchReplace         Kind = "batch_replace"
	KindDeleteVolume         Kind = "delete_volume"
	KindRestoreVolume        Kind = "restore_volume"
	KindModifyConfig         Kind = "modify_config"
	KindModifyModelParams    Kind = "modify_llm_params"
	KindModifyCharacter      Kind = "modify_character"
	KindModifyStyleProfile   Kind = "modify_style_profile"
	KindGenerateChapter      Kind = "generate_chapter"
	KindGenerateSetting      Kind = "generate_setting"
	KindGenerateArchitecture Kind = "generate_architecture"
	KindGenerateBlueprint    Kind = "generate_blueprint"
	KindStyleCheckFix        Kind = "style_check_fix"
	KindMoveChapter          Kind = "move_chapter"
	KindReorder              Kind = "reorder"
	KindModifyTag            Kind = "modify_tag"
	KindImportKnowledge      Kind = "import_knowledge"
	KindClearVectorStore     Kind = "clear_vectorstore"
)

// mergeWindow is the maximum gap between two edits for auto-merge.
const mergeWindow = 2 * time.Second

// mergeableKinds are the content-edit kinds eligible for auto-merge.
var mergeableKinds = map[Kind]bool{
	KindEditChapter:     true,
	KindModifyCharacter: true,
}

// Operation describes one user-visible, reversible change to host
// application state. OldValue and NewValue are opaque JSON-serializable
// payloads carrying whatever the external applier needs to reverse or
// replay the change; either may be nil for creations and deletions.
type Operation struct {
	Kind        Kind           `json:"kind"`
	Target      string         `json:"target"`
	OldValue    any            `json:"old_value,omitempty"`
	NewValue    any            `json:"new_value,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Description string         `json:"description"`
}

// NewOperation builds an operation stamped with the current time. The
// description is derived from kind, target, and metadata; callers with a
// better label may overwrite Description afterwards.
func NewOperation(kind Kind, target string, oldValue, newValue any) *Operation {
	return NewOperationWithMetadata(kind, target, oldValue, newValue, nil)
}

// NewOperationWithMetadata is NewOperation with auxiliary facts attached
// (word counts, replacement counts) that feed the derived description.
func NewOperationWithMetadata(kind Kind, target string, oldValue, newValue any, metadata map[string]any) *Operation {
	op := &Operation{
		Kind:      kind,
		Target:    target,
		OldValue:  oldValue,
		NewValue:  newValue,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
	if op.Metadata == nil {
		op.Metadata = map[string]any{}
	}
	op.Description = op.describe()
	return op
}

// CanMergeWith reports whether next can be collapsed into o: same kind
// and target, a content-edit kind, and recorded within the merge window.
func (o *Operation) CanMergeWith(next *Operation) bool {
	if o.Kind != next.Kind || o.Target != next.Target {
		return false
	}
	if !mergeableKinds[o.Kind] {
		return false
	}
	return next.Timestamp.Sub(o.Timestamp) <= mergeWindow
}

// MergeWith collapses next into o, keeping o's old value, timestamp, and
// metadata while taking next's new value. The description is regenerated
// from the merged fields, never concatenated.
func (o *Operation) MergeWith(next *Operation) *Operation {
	merged := &Operation{
		Kind:      o.Kind,
		Target:    o.Target,
		OldValue:  o.OldValue,
		NewValue:  next.NewValue,
		Timestamp: o.Timestamp,
		Metadata:  o.Metadata,
	}
	merged.Description = merged.describe()
	return merged
}

func (o *Operation) describe() string {
	switch o.Kind {
	case KindEditChapter:
		return "Edit chapter " + o.Target
	case KindAddChapter:
		return "Add chapter " + o.Target
	case KindDeleteChapter:
		return "Delete chapter " + o.Target
	case KindGenerateChapter:
		words := any("unknown")
		if v, ok := o.Metadata["word_count"]; ok {
			words = v
		}
		return fmt.Sprintf("Generate chapter %s (%v words)", o.Target, words)
	case KindBatchReplace:
		count := o.Metadata["count"]
		if count == nil {
			count = 0
		}
		return fmt.Sprintf("Replace %v with %v (%v occurrences)", o.OldValue, o.NewValue, count)
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Target)
	}
}
