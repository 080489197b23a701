// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

// Package sqlite implements the reference local persistent vector
// store backend: a single collection kept in one SQLite database with
// the sqlite-vec extension providing the similarity index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/inkstone-dev/inkstone/internal/vectorstore"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ vectorstore.Backend = (*Backend)(nil)

var errNotInitialized = errors.New("sqlite backend not initialized")

// Backend stores one collection at <persist_dir>/<collection>.db: a
// vec0 virtual table holding the embeddings under a cosine distance
// metric, and a companion documents table for text and metadata.
type Backend struct {
	db     *sql.DB
	cfg    vectorstore.BackendConfig
	dbPath string
}

// Initialize opens (or creates) the collection database and runs the
// schema migration. Safe to call again after a restore has swapped the
// files underneath the backend.
func (b *Backend) Initialize(cfg vectorstore.BackendConfig) error {
	if cfg.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if cfg.PersistDir == "" {
		return fmt.Errorf("persist directory must not be empty")
	}

	if b.db != nil {
		_ = b.db.Close()
		b.db = nil
	}

	if err := os.MkdirAll(cfg.PersistDir, 0o750); err != nil {
		return fmt.Errorf("creating persist directory: %w", err)
	}

	dbPath := filepath.Join(cfg.PersistDir, cfg.Collection+".db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := migrate(db, cfg.Dimensions); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrating collection schema: %w", err)
	}

	b.db = db
	b.cfg = cfg
	b.dbPath = dbPath
	return nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating embeddings virtual table: %w", err)
	}

	const docDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(docDDL); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	return nil
}

// AddEmbeddings inserts documents strictly; an id already present in
// the collection fails the whole batch.
func (b *Backend) AddEmbeddings(ctx context.Context, docs []vectorstore.Document, embeddings [][]float32) error {
	if b.db == nil {
		return errNotInitialized
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("got %d embeddings for %d documents", len(embeddings), len(docs))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serializing embedding %s: %w", doc.ID, err)
		}
		metaJSON, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO embeddings(id, embedding) VALUES (?, ?)`, doc.ID, blob); err != nil {
			return fmt.Errorf("inserting embedding %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(id, text, metadata) VALUES (?, ?, ?)`, doc.ID, doc.Text, metaJSON); err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing add: %w", err)
	}
	return nil
}

// UpdateEmbeddings overwrites documents by id.
func (b *Backend) UpdateEmbeddings(ctx context.Context, docs []vectorstore.Document, embeddings [][]float32) error {
	if b.db == nil {
		return errNotInitialized
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("got %d embeddings for %d documents", len(embeddings), len(docs))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serializing embedding %s: %w", doc.ID, err)
		}
		metaJSON, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata %s: %w", doc.ID, err)
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, doc.ID); err != nil {
			return fmt.Errorf("deleting existing embedding %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO embeddings(id, embedding) VALUES (?, ?)`, doc.ID, blob); err != nil {
			return fmt.Errorf("inserting embedding %s: %w", doc.ID, err)
		}

		const docQ = `INSERT INTO documents(id, text, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata`
		if _, err := tx.ExecContext(ctx, docQ, doc.ID, doc.Text, metaJSON); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// DeleteEmbeddings removes documents by id; missing ids are ignored.
func (b *Backend) DeleteEmbeddings(ctx context.Context, ids []string) error {
	if b.db == nil {
		return errNotInitialized
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// GetDocuments returns the documents found among ids in input order;
// missing ids are skipped.
func (b *Backend) GetDocuments(ctx context.Context, ids []string) ([]vectorstore.Document, error) {
	if b.db == nil {
		return nil, errNotInitialized
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := b.db.QueryContext(ctx, `SELECT id, text, metadata FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]vectorstore.Document, len(ids))
	for rows.Next() {
		var doc vectorstore.Document
		var metaStr string
		if err := rows.Scan(&doc.ID, &doc.Text, &metaStr); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if doc.Metadata, err = unmarshalMetadata(metaStr); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata %s: %w", doc.ID, err)
		}
		found[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	out := make([]vectorstore.Document, 0, len(found))
	for _, id := range ids {
		if doc, ok := found[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Search returns up to topK documents ranked by similarity to the
// query embedding. Score is 1 minus the cosine distance, so an exact
// match scores 1.0 and an orthogonal vector 0.0.
func (b *Backend) Search(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	if b.db == nil {
		return nil, errNotInitialized
	}
	if topK <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	if len(filter) == 0 {
		return b.knnSearch(ctx, blob, topK)
	}
	return b.filteredSearch(ctx, blob, topK, filter)
}

func (b *Backend) knnSearch(ctx context.Context, blob []byte, topK int) ([]vectorstore.SearchResult, error) {
	const q = `SELECT e.id, e.distance, COALESCE(d.text, ''), COALESCE(d.metadata, '{}')
FROM embeddings e
LEFT JOIN documents d ON d.id = e.id
WHERE e.embedding MATCH ? AND k = ?
ORDER BY e.distance`

	rows, err := b.db.QueryContext(ctx, q, blob, topK)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// filteredSearch scans the filtered subset exactly instead of
// post-filtering a KNN pass, which could drop matches ranked past
// topK among unfiltered rows.
func (b *Backend) filteredSearch(ctx context.Context, blob []byte, topK int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	preds := make([]string, 0, len(keys))
	args := []any{blob}
	for _, key := range keys {
		preds = append(preds, `json_extract(d.metadata, ?) = ?`)
		args = append(args, "$."+key, filter[key])
	}
	args = append(args, topK)

	q := `SELECT e.id, vec_distance_cosine(e.embedding, ?) AS distance, d.text, d.metadata
FROM embeddings e
JOIN documents d ON d.id = e.id
WHERE ` + strings.Join(preds, " AND ") + `
ORDER BY distance
LIMIT ?`

	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching embeddings with filter: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]vectorstore.SearchResult, error) {
	var results []vectorstore.SearchResult
	for rows.Next() {
		var r vectorstore.SearchResult
		var distance float64
		var metaStr string

		if err := rows.Scan(&r.ID, &distance, &r.Text, &metaStr); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Score = 1 - distance

		var err error
		if r.Metadata, err = unmarshalMetadata(metaStr); err != nil {
			return nil, fmt.Errorf("unmarshalling result metadata %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// Stats counts documents and sums the on-disk size of the persist
// directory.
func (b *Backend) Stats(ctx context.Context) (vectorstore.Stats, error) {
	stats := vectorstore.Stats{Backend: "sqlite", Collection: b.cfg.Collection}
	if b.db == nil {
		return stats, errNotInitialized
	}

	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Count); err != nil {
		return stats, fmt.Errorf("counting documents: %w", err)
	}

	size, err := dirSize(b.cfg.PersistDir)
	if err != nil {
		return stats, fmt.Errorf("sizing persist directory: %w", err)
	}
	stats.SizeBytes = size
	return stats, nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(metaStr string) (map[string]any, error) {
	if metaStr == "" || metaStr == "{}" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(metaStr), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
