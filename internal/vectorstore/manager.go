// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
)

const (
	// DefaultCollection names the single collection the studio stores
	// its embeddings in.
	DefaultCollection = "novel_embeddings"
	DefaultPersistDir = "vectorstore"
	DefaultDimensions = 768
	DefaultTopK       = 5

	// LockFileName is the well-known cross-process lock file, created
	// in the working directory unless Config.LockPath overrides it.
	LockFileName = "vector_store.lock"
)

// Config selects and parameterizes the backend.
type Config struct {
	// Backend is a registry identifier; "" means DefaultBackend.
	Backend string
	// AutoSwitch falls back to DefaultBackend when the requested
	// backend is unknown, unimplemented, or fails to initialize.
	AutoSwitch bool
	PersistDir string
	Collection string
	Dimensions int
	// LockPath overrides the cross-process lock file location.
	LockPath string
	// Options is passed to the backend untouched.
	Options map[string]any
}

// Manager owns exactly one active backend and serializes every mutating
// call under two locks held in fixed order: the in-process mutex first,
// then the cross-process file lock, released in reverse. Reads skip
// both locks and may benignly race a concurrent write.
type Manager struct {
	cfg         Config
	backendName string
	adapter     EmbeddingAdapter
	backend     Backend

	mu  sync.Mutex
	flk *flock.Flock
}

// NewManager resolves, constructs, and initializes the configured
// backend. An unknown or unimplemented backend name, or a backend whose
// initialization fails, falls back to the reference backend when
// cfg.AutoSwitch is set; without auto-switch, or when the fallback
// itself cannot initialize, construction fails since the manager cannot
// operate without a usable store. The adapter may be nil; operations
// that need embeddings then fail with a configuration error.
func NewManager(cfg Config, adapter EmbeddingAdapter) (*Manager, error) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.PersistDir == "" {
		cfg.PersistDir = DefaultPersistDir
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.LockPath == "" {
		cfg.LockPath = LockFileName
	}

	name := cfg.Backend
	backend, err := newBackend(name)
	if err != nil {
		if !cfg.AutoSwitch || name == DefaultBackend {
			return nil, err
		}
		slog.Warn("requested vector store backend unavailable, falling back",
			"backend", name, "fallback", DefaultBackend, "error", err)
		name = DefaultBackend
		if backend, err = newBackend(name); err != nil {
			return nil, err
		}
	}

	bcfg := BackendConfig{
		PersistDir: cfg.PersistDir,
		Collection: cfg.Collection,
		Dimensions: cfg.Dimensions,
		Options:    cfg.Options,
	}

	if err := backend.Initialize(bcfg); err != nil {
		if !cfg.AutoSwitch || name == DefaultBackend {
			return nil, inkerr.Wrapf(err, inkerr.CodeStoreBackendInitFailure, "initializing vector store backend %q", name)
		}
		slog.Warn("vector store backend failed to initialize, falling back",
			"backend", name, "fallback", DefaultBackend, "error", err)
		_ = backend.Close()

		name = DefaultBackend
		if backend, err = newBackend(name); err != nil {
			return nil, err
		}
		if err := backend.Initialize(bcfg); err != nil {
			return nil, inkerr.Wrap(err, inkerr.CodeStoreBackendInitFailure, "initializing fallback vector store backend")
		}
	}

	slog.Info("vector store ready",
		"backend", name, "collection", cfg.Collection, "persist_dir", cfg.PersistDir)

	return &Manager{
		cfg:         cfg,
		backendName: name,
		adapter:     adapter,
		backend:     backend,
		flk:         flock.New(cfg.LockPath),
	}, nil
}

// BackendName returns the active backend's registry name, which may be
// the fallback rather than the requested one.
func (m *Manager) BackendName() string { return m.backendName }

// Close releases the backend. The manager must not be used afterwards.
func (m *Manager) Close() error {
	if err := m.backend.Close(); err != nil {
		return inkerr.Wrap(err, inkerr.CodeStoreDatabaseFailure, "closing vector store backend")
	}
	return nil
}

// --- Locking ---

// lock acquires the in-process mutex, then the cross-process file lock.
// The file lock blocks until acquired; a stuck holder stalls all
// mutators, which is a documented limitation.
func (m *Manager) lock() error {
	m.mu.Lock()
	if err := m.flk.Lock(); err != nil {
		m.mu.Unlock()
		return inkerr.Wrap(err, inkerr.CodeStoreLockFailure, "acquiring vector store file lock")
	}
	return nil
}

// unlock releases in reverse order: file lock first, then the mutex.
func (m *Manager) unlock() {
	if err := m.flk.Unlock(); err != nil {
		slog.Error("releasing vector store file lock", "path", m.cfg.LockPath, "error", err)
	}
	m.mu.Unlock()
}

// --- Embedding ---

func (m *Manager) embedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.adapter == nil {
		return nil, inkerr.New(inkerr.CodeAdapterMissing, "no embedding adapter configured")
	}
	embeddings, err := m.adapter.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, inkerr.Wrap(err, inkerr.CodeAdapterEmbedFailure, "embedding documents")
	}
	if len(embeddings) != len(texts) {
		return nil, inkerr.Errorf(inkerr.CodeAdapterEmbedFailure, "adapter returned %d embeddings for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// --- Document CRUD ---

// AddDocument stores one document, generating an id when none is given,
// and returns the id used.
func (m *Manager) AddDocument(ctx context.Context, text string, metadata map[string]any, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	return id, m.AddDocuments(ctx, []string{text}, []map[string]any{metadata}, []string{id})
}

// AddDocuments stores a batch of documents. Embeddings are computed in
// one adapter call before any lock is taken; a nil metadatas or ids
// slice means no metadata and generated ids respectively. Backend
// faults are logged and returned as coded errors.
func (m *Manager) AddDocuments(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) error {
	if len(texts) == 0 {
		return nil
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "got %d metadata entries for %d texts", len(metadatas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "got %d ids for %d texts", len(ids), len(texts))
	}

	embeddings, err := m.embedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	docs := make([]Document, len(texts))
	for i, text := range texts {
		doc := Document{Text: text, Metadata: map[string]any{}}
		if metadatas != nil && metadatas[i] != nil {
			doc.Metadata = metadatas[i]
		}
		if ids != nil && ids[i] != "" {
			doc.ID = ids[i]
		} else {
			doc.ID = uuid.NewString()
		}
		docs[i] = doc
	}

	if err := m.lock(); err != nil {
		return err
	}
	defer m.unlock()

	if err := m.backend.AddEmbeddings(ctx, docs, embeddings); err != nil {
		slog.Error("adding documents", "backend", m.backendName, "count", len(docs), "error", err)
		return inkerr.Wrapf(err, inkerr.CodeStoreAddFailure, "adding %d documents", len(docs))
	}

	slog.Debug("documents added", "count", len(docs))
	return nil
}

// Search embeds the query and returns up to topK hits ranked by
// similarity, optionally restricted by an equality filter over metadata
// fields. A missing adapter is an error; a backend fault degrades to an
// empty result since a search is advisory in the host application.
func (m *Manager) Search(ctx context.Context, query string, topK int, filter map[string]any) ([]SearchResult, error) {
	if m.adapter == nil {
		return nil, inkerr.New(inkerr.CodeAdapterMissing, "no embedding adapter configured")
	}
	embedding, err := m.adapter.EmbedQuery(ctx, query)
	if err != nil {
		return nil, inkerr.Wrap(err, inkerr.CodeAdapterEmbedFailure, "embedding query")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := m.backend.Search(ctx, embedding, topK, filter)
	if err != nil {
		slog.Error("searching vector store", "backend", m.backendName, "error", err)
		return nil, nil
	}
	return results, nil
}

// GetDocument returns the document with the given id, or nil when it
// does not exist.
func (m *Manager) GetDocument(ctx context.Context, id string) (*Document, error) {
	docs, err := m.GetDocuments(ctx, []string{id})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// GetDocuments returns the documents found among ids; missing ids are
// simply absent from the result. Lock-free; a backend fault degrades to
// an empty result.
func (m *Manager) GetDocuments(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := m.backend.GetDocuments(ctx, ids)
	if err != nil {
		slog.Error("reading documents", "backend", m.backendName, "count", len(ids), "error", err)
		return nil, nil
	}
	return docs, nil
}

// DeleteDocument removes one document by id.
func (m *Manager) DeleteDocument(ctx context.Context, id string) error {
	return m.DeleteDocuments(ctx, []string{id})
}

// DeleteDocuments removes documents by id under the dual lock. Missing
// ids are not an error.
func (m *Manager) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := m.lock(); err != nil {
		return err
	}
	defer m.unlock()

	if err := m.backend.DeleteEmbeddings(ctx, ids); err != nil {
		slog.Error("deleting documents", "backend", m.backendName, "count", len(ids), "error", err)
		return inkerr.Wrapf(err, inkerr.CodeStoreDeleteFailure, "deleting %d documents", len(ids))
	}

	slog.Debug("documents deleted", "count", len(ids))
	return nil
}

// UpdateDocument overwrites one document, re-embedding its text. A nil
// metadata keeps the stored metadata rather than clearing it, which
// requires the document to exist.
func (m *Manager) UpdateDocument(ctx context.Context, id, text string, metadata map[string]any) error {
	if id == "" {
		return inkerr.New(inkerr.CodeStoreInvalidInput, "updating a document requires an id")
	}

	if metadata == nil {
		existing, err := m.backend.GetDocuments(ctx, []string{id})
		if err != nil {
			slog.Error("reading document for update", "backend", m.backendName, "id", id, "error", err)
			return inkerr.Wrapf(err, inkerr.CodeStoreUpdateFailure, "reading document %s for update", id)
		}
		if len(existing) == 0 {
			return inkerr.New(inkerr.CodeStoreDocumentNotFound, "document does not exist", inkerr.FieldDocumentID(id))
		}
		metadata = existing[0].Metadata
	}

	return m.UpdateDocuments(ctx, []string{text}, []map[string]any{metadata}, []string{id})
}

// UpdateDocuments overwrites a batch of documents by id under the dual
// lock, re-embedding every text.
func (m *Manager) UpdateDocuments(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) error {
	if len(texts) == 0 {
		return nil
	}
	if len(ids) != len(texts) {
		return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "got %d ids for %d texts, updates need one id per text", len(ids), len(texts))
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "got %d metadata entries for %d texts", len(metadatas), len(texts))
	}

	embeddings, err := m.embedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	docs := make([]Document, len(texts))
	for i, text := range texts {
		doc := Document{ID: ids[i], Text: text, Metadata: map[string]any{}}
		if doc.ID == "" {
			return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "updating a document requires an id")
		}
		if metadatas != nil && metadatas[i] != nil {
			doc.Metadata = metadatas[i]
		}
		docs[i] = doc
	}

	if err := m.lock(); err != nil {
		return err
	}
	defer m.unlock()

	if err := m.backend.UpdateEmbeddings(ctx, docs, embeddings); err != nil {
		slog.Error("updating documents", "backend", m.backendName, "count", len(docs), "error", err)
		return inkerr.Wrapf(err, inkerr.CodeStoreUpdateFailure, "updating %d documents", len(docs))
	}

	slog.Debug("documents updated", "count", len(docs))
	return nil
}

// GetStats reports collection size without locking; counts may be
// slightly stale against concurrent writers.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	stats, err := m.backend.Stats(ctx)
	if err != nil {
		slog.Error("reading vector store stats", "backend", m.backendName, "error", err)
		return Stats{Backend: m.backendName, Collection: m.cfg.Collection}, inkerr.Wrap(err, inkerr.CodeStoreStatsFailure, "reading vector store stats")
	}
	return stats, nil
}

// --- Snapshots ---

// CreateSnapshot copies the live collection to the snapshot directory
// under the dual lock and writes a manifest beside the data. An
// existing snapshot of the same name is replaced.
func (m *Manager) CreateSnapshot(ctx context.Context, name string) error {
	if err := validateSnapshotName(name); err != nil {
		return err
	}

	// Advisory manifest numbers; a stats failure does not block the
	// snapshot itself.
	stats, err := m.backend.Stats(ctx)
	if err != nil {
		slog.Warn("reading stats for snapshot manifest", "snapshot", name, "error", err)
		stats = Stats{Backend: m.backendName, Collection: m.cfg.Collection}
	}

	if err := m.lock(); err != nil {
		return err
	}
	defer m.unlock()

	if err := m.backend.CreateSnapshot(name); err != nil {
		slog.Error("creating snapshot", "backend", m.backendName, "snapshot", name, "error", err)
		return inkerr.Wrapf(err, inkerr.CodeStoreSnapshotCreateFailure, "creating snapshot %q", name)
	}

	m.writeManifest(name, stats)
	slog.Info("snapshot created", "snapshot", name)
	return nil
}

// RestoreSnapshot destructively overwrites the live collection with the
// named snapshot under the dual lock. A missing snapshot fails cleanly
// without touching live data.
func (m *Manager) RestoreSnapshot(name string) error {
	if err := validateSnapshotName(name); err != nil {
		return err
	}

	if err := m.lock(); err != nil {
		return err
	}
	defer m.unlock()

	if err := m.backend.RestoreSnapshot(name); err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			slog.Warn("snapshot does not exist", "snapshot", name)
			return inkerr.Wrapf(err, inkerr.CodeStoreSnapshotNotFound, "restoring snapshot %q", name)
		}
		slog.Error("restoring snapshot", "backend", m.backendName, "snapshot", name, "error", err)
		return inkerr.Wrapf(err, inkerr.CodeStoreSnapshotRestoreFailure, "restoring snapshot %q", name)
	}

	slog.Info("snapshot restored", "snapshot", name)
	return nil
}

// ListSnapshots returns the manifests of every snapshot, newest first.
// Snapshot directories without a readable manifest appear as name-only
// entries.
func (m *Manager) ListSnapshots() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(m.snapshotsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, inkerr.Wrap(err, inkerr.CodeStoreSnapshotListFailure, "listing snapshots")
	}

	infos := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := SnapshotInfo{Name: entry.Name()}
		data, err := os.ReadFile(filepath.Join(m.snapshotsDir(), entry.Name(), ManifestFile))
		if err == nil {
			if err := yaml.Unmarshal(data, &info); err != nil {
				slog.Warn("unreadable snapshot manifest", "snapshot", entry.Name(), "error", err)
				info = SnapshotInfo{Name: entry.Name()}
			}
		}
		info.Name = entry.Name()
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (m *Manager) writeManifest(name string, stats Stats) {
	info := SnapshotInfo{
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Backend:    m.backendName,
		Collection: m.cfg.Collection,
		Count:      stats.Count,
		SizeBytes:  stats.SizeBytes,
	}

	data, err := yaml.Marshal(info)
	if err != nil {
		slog.Warn("encoding snapshot manifest", "snapshot", name, "error", err)
		return
	}

	dir := filepath.Join(m.snapshotsDir(), name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Warn("creating snapshot directory for manifest", "snapshot", name, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o600); err != nil {
		slog.Warn("writing snapshot manifest", "snapshot", name, "error", err)
	}
}

func (m *Manager) snapshotsDir() string {
	return filepath.Join(filepath.Dir(filepath.Clean(m.cfg.PersistDir)), "snapshots")
}

func validateSnapshotName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return inkerr.Errorf(inkerr.CodeStoreInvalidInput, "invalid snapshot name %q", name)
	}
	return nil
}
