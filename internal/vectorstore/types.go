// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

// Package vectorstore manages a persistent similarity-search index
// behind a uniform backend contract: backend selection with fallback,
// embedding orchestration through a host-supplied adapter, document
// CRUD, snapshot lifecycle, and the dual in-process/cross-process lock
// that serializes every mutation.
package vectorstore

import (
	"context"
	"errors"
	"time"
)

// Document is one stored text with its open metadata. Its embedding is
// derived at write time and lives 1:1 with the document inside the
// backend, never independently.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is one ranked hit. Score is similarity: higher is more
// similar, and for normalized distance metrics it falls in [0, 1].
type SearchResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Stats summarizes the persisted collection.
type Stats struct {
	Count      int64  `json:"count"`
	SizeBytes  int64  `json:"size_bytes"`
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
}

// ManifestFile names the manifest written at the root of each snapshot
// directory. Backends must leave it out when copying a snapshot back
// over the live collection.
const ManifestFile = "snapshot.yaml"

// SnapshotInfo is the manifest written next to a snapshot's data. A
// snapshot directory missing its manifest surfaces as a name-only
// entry.
type SnapshotInfo struct {
	Name       string    `yaml:"name"`
	CreatedAt  time.Time `yaml:"created_at"`
	Backend    string    `yaml:"backend"`
	Collection string    `yaml:"collection"`
	Count      int64     `yaml:"count"`
	SizeBytes  int64     `yaml:"size_bytes"`
}

// EmbeddingAdapter converts text to vectors. It is supplied by the host
// application; the manager never bundles a model. Its absence is a
// configuration error, not a backend error.
type EmbeddingAdapter interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// BackendConfig carries everything a backend needs to open its
// collection. Options holds backend-specific extras the manager passes
// through untouched.
type BackendConfig struct {
	PersistDir string
	Collection string
	Dimensions int
	Options    map[string]any
}

// Backend is the uniform store contract, implemented once per concrete
// index technology. All embeddings handed to a backend have the
// dimensionality it was initialized with.
//
// Snapshot methods operate on the backend's persisted storage and are
// only safe under the manager's locks; a restore must never race with a
// concurrent mutation against the same directory.
type Backend interface {
	Initialize(cfg BackendConfig) error
	AddEmbeddings(ctx context.Context, docs []Document, embeddings [][]float32) error
	Search(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]SearchResult, error)
	GetDocuments(ctx context.Context, ids []string) ([]Document, error)
	DeleteEmbeddings(ctx context.Context, ids []string) error
	UpdateEmbeddings(ctx context.Context, docs []Document, embeddings [][]float32) error
	CreateSnapshot(name string) error
	RestoreSnapshot(name string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ErrSnapshotNotFound marks a restore naming a snapshot that does not
// exist. Backends wrap it so the manager can fail the restore cleanly
// without touching live data.
var ErrSnapshotNotFound = errors.New("snapshot not found")
