// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package vectorstore_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/inkstone-dev/inkstone/internal/vectorstore"
	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
)

// mockAdapter produces deterministic embeddings and counts calls.
type mockAdapter struct {
	mu         sync.Mutex
	dims       int
	batchCalls int
	queryCalls int
	embedErr   error
}

func newMockAdapter() *mockAdapter { return &mockAdapter{dims: 4} }

func (a *mockAdapter) embed(text string) []float32 {
	vec := make([]float32, a.dims)
	vec[len(text)%a.dims] = 1
	return vec
}

func (a *mockAdapter) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	a.mu.Lock()
	a.batchCalls++
	a.mu.Unlock()
	if a.embedErr != nil {
		return nil, a.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = a.embed(text)
	}
	return out, nil
}

func (a *mockAdapter) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	a.mu.Lock()
	a.queryCalls++
	a.mu.Unlock()
	if a.embedErr != nil {
		return nil, a.embedErr
	}
	return a.embed(text), nil
}

// mockBackend keeps documents in memory and records how it was driven.
type mockBackend struct {
	mu          sync.Mutex
	docs        map[string]vectorstore.Document
	snapshots   map[string]map[string]vectorstore.Document
	initCfg     vectorstore.BackendConfig
	inFlight    int
	maxInFlight int

	lastTopK   int
	lastFilter map[string]any

	initErr     error
	addErr      error
	searchErr   error
	getErr      error
	deleteErr   error
	updateErr   error
	statsErr    error
	snapshotErr error
	restoreErr  error

	searchResults []vectorstore.SearchResult
	closed        bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		docs:      map[string]vectorstore.Document{},
		snapshots: map[string]map[string]vectorstore.Document{},
	}
}

// enter/exit bracket a mutating call so overlapping mutations are
// visible as maxInFlight > 1.
func (b *mockBackend) enter() {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mu.Unlock()
	time.Sleep(time.Millisecond)
}

func (b *mockBackend) exit() {
	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
}

func (b *mockBackend) Initialize(cfg vectorstore.BackendConfig) error {
	b.initCfg = cfg
	return b.initErr
}

func (b *mockBackend) AddEmbeddings(_ context.Context, docs []vectorstore.Document, embeddings [][]float32) error {
	b.enter()
	defer b.exit()
	if b.addErr != nil {
		return b.addErr
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("got %d embeddings for %d documents", len(embeddings), len(docs))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, doc := range docs {
		if _, exists := b.docs[doc.ID]; exists {
			return fmt.Errorf("document %s already exists", doc.ID)
		}
	}
	for _, doc := range docs {
		b.docs[doc.ID] = doc
	}
	return nil
}

func (b *mockBackend) Search(_ context.Context, _ []float32, topK int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	b.mu.Lock()
	b.lastTopK = topK
	b.lastFilter = filter
	b.mu.Unlock()
	if b.searchErr != nil {
		return nil, b.searchErr
	}
	return b.searchResults, nil
}

func (b *mockBackend) GetDocuments(_ context.Context, ids []string) ([]vectorstore.Document, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []vectorstore.Document
	for _, id := range ids {
		if doc, ok := b.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (b *mockBackend) DeleteEmbeddings(_ context.Context, ids []string) error {
	b.enter()
	defer b.exit()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.docs, id)
	}
	return nil
}

func (b *mockBackend) UpdateEmbeddings(_ context.Context, docs []vectorstore.Document, _ [][]float32) error {
	b.enter()
	defer b.exit()
	if b.updateErr != nil {
		return b.updateErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, doc := range docs {
		b.docs[doc.ID] = doc
	}
	return nil
}

func (b *mockBackend) CreateSnapshot(name string) error {
	b.enter()
	defer b.exit()
	if b.snapshotErr != nil {
		return b.snapshotErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make(map[string]vectorstore.Document, len(b.docs))
	for id, doc := range b.docs {
		copied[id] = doc
	}
	b.snapshots[name] = copied
	return nil
}

func (b *mockBackend) RestoreSnapshot(name string) error {
	b.enter()
	defer b.exit()
	if b.restoreErr != nil {
		return b.restoreErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, ok := b.snapshots[name]
	if !ok {
		return fmt.Errorf("restoring snapshot %q: %w", name, vectorstore.ErrSnapshotNotFound)
	}
	restored := make(map[string]vectorstore.Document, len(snap))
	for id, doc := range snap {
		restored[id] = doc
	}
	b.docs = restored
	return nil
}

func (b *mockBackend) Stats(_ context.Context) (vectorstore.Stats, error) {
	if b.statsErr != nil {
		return vectorstore.Stats{}, b.statsErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return vectorstore.Stats{
		Count:      int64(len(b.docs)),
		SizeBytes:  4096,
		Backend:    "sqlite",
		Collection: b.initCfg.Collection,
	}, nil
}

func (b *mockBackend) Close() error {
	b.closed = true
	return nil
}

func (b *mockBackend) doc(t *testing.T, id string) vectorstore.Document {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[id]
	require.True(t, ok, "document %s not stored", id)
	return doc
}

func (b *mockBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

func testConfig(t *testing.T) vectorstore.Config {
	t.Helper()
	base := t.TempDir()
	return vectorstore.Config{
		Backend:    "sqlite",
		AutoSwitch: true,
		PersistDir: filepath.Join(base, "data", "vectorstore"),
		Collection: "novel_embeddings",
		Dimensions: 4,
		LockPath:   filepath.Join(base, "test.lock"),
	}
}

// newTestManager wires a fresh mock backend in as the reference backend
// implementation for this test binary.
func newTestManager(t *testing.T, cfg vectorstore.Config, adapter vectorstore.EmbeddingAdapter) (*vectorstore.Manager, *mockBackend) {
	t.Helper()
	backend := newMockBackend()
	vectorstore.RegisterBackend(vectorstore.DefaultBackend, func() vectorstore.Backend { return backend })

	m, err := vectorstore.NewManager(cfg, adapter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, backend
}

// ---------------------------------------------------------------------------
// Construction and fallback
// ---------------------------------------------------------------------------

func TestNewManager_PassesConfigThrough(t *testing.T) {
	cfg := testConfig(t)
	m, backend := newTestManager(t, cfg, newMockAdapter())

	assert.Equal(t, "sqlite", m.BackendName())
	assert.Equal(t, cfg.PersistDir, backend.initCfg.PersistDir)
	assert.Equal(t, "novel_embeddings", backend.initCfg.Collection)
	assert.Equal(t, 4, backend.initCfg.Dimensions)
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = ""
	cfg.Collection = ""
	cfg.Dimensions = 0
	m, backend := newTestManager(t, cfg, newMockAdapter())

	assert.Equal(t, vectorstore.DefaultBackend, m.BackendName())
	assert.Equal(t, vectorstore.DefaultCollection, backend.initCfg.Collection)
	assert.Equal(t, vectorstore.DefaultDimensions, backend.initCfg.Dimensions)
}

func TestNewManager_UnknownBackendFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "chroma"
	cfg.AutoSwitch = false

	_, err := vectorstore.NewManager(cfg, newMockAdapter())
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreBackendUnsupported))
	assert.True(t, inkerr.IsUnsupported(err))
}

func TestNewManager_UnknownBackendFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "chroma"
	m, _ := newTestManager(t, cfg, newMockAdapter())

	assert.Equal(t, vectorstore.DefaultBackend, m.BackendName())
}

func TestNewManager_StubbedBackendFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "qdrant"
	m, _ := newTestManager(t, cfg, newMockAdapter())

	assert.Equal(t, vectorstore.DefaultBackend, m.BackendName())
}

func TestNewManager_StubbedBackendFailsWithoutAutoSwitch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "qdrant"
	cfg.AutoSwitch = false

	_, err := vectorstore.NewManager(cfg, newMockAdapter())
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreBackendNotImplemented))
}

func TestNewManager_InitFailureFallsBack(t *testing.T) {
	failing := newMockBackend()
	failing.initErr = fmt.Errorf("milvus cluster unreachable")
	vectorstore.RegisterBackend("milvus", func() vectorstore.Backend { return failing })

	cfg := testConfig(t)
	cfg.Backend = "milvus"
	m, _ := newTestManager(t, cfg, newMockAdapter())

	assert.Equal(t, vectorstore.DefaultBackend, m.BackendName())
	assert.True(t, failing.closed, "the failed backend is released before falling back")
}

func TestNewManager_InitFailureFatalWithoutAutoSwitch(t *testing.T) {
	failing := newMockBackend()
	failing.initErr = fmt.Errorf("milvus cluster unreachable")
	vectorstore.RegisterBackend("milvus", func() vectorstore.Backend { return failing })

	cfg := testConfig(t)
	cfg.Backend = "milvus"
	cfg.AutoSwitch = false

	_, err := vectorstore.NewManager(cfg, newMockAdapter())
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreBackendInitFailure))
}

// ---------------------------------------------------------------------------
// Adding
// ---------------------------------------------------------------------------

func TestAddDocuments_StoresBatch(t *testing.T) {
	ctx := context.Background()
	adapter := newMockAdapter()
	m, backend := newTestManager(t, testConfig(t), adapter)

	err := m.AddDocuments(ctx,
		[]string{"chapter one", "chapter two"},
		[]map[string]any{{"chapter": "1"}, {"chapter": "2"}},
		[]string{"doc-1", "doc-2"})
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.batchCalls, "one adapter call per batch")
	assert.Equal(t, 2, backend.count())
	doc := backend.doc(t, "doc-1")
	assert.Equal(t, "chapter one", doc.Text)
	assert.Equal(t, "1", doc.Metadata["chapter"])
}

func TestAddDocuments_EmptyInputIsNoOp(t *testing.T) {
	adapter := newMockAdapter()
	m, backend := newTestManager(t, testConfig(t), adapter)

	require.NoError(t, m.AddDocuments(context.Background(), nil, nil, nil))
	assert.Equal(t, 0, adapter.batchCalls)
	assert.Equal(t, 0, backend.count())
}

func TestAddDocuments_LengthMismatch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	err := m.AddDocuments(ctx, []string{"a", "b"}, []map[string]any{{}}, nil)
	require.Error(t, err)
	assert.True(t, inkerr.IsInvalidInput(err))

	err = m.AddDocuments(ctx, []string{"a", "b"}, nil, []string{"only-one"})
	require.Error(t, err)
	assert.True(t, inkerr.IsInvalidInput(err))
}

func TestAddDocuments_MissingAdapter(t *testing.T) {
	m, _ := newTestManager(t, testConfig(t), nil)

	err := m.AddDocuments(context.Background(), []string{"a"}, nil, []string{"1"})
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeAdapterMissing))
	assert.True(t, inkerr.IsConfiguration(err))
}

func TestAddDocuments_GeneratesIDsWhenNil(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())

	require.NoError(t, m.AddDocuments(context.Background(), []string{"a", "b"}, nil, nil))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.docs, 2)
	for id := range backend.docs {
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "generated ids are uuids")
	}
}

func TestAddDocument_ReturnsGeneratedID(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())

	id, err := m.AddDocument(context.Background(), "a lone chapter", map[string]any{"chapter": "7"}, "")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	doc := backend.doc(t, id)
	assert.Equal(t, "a lone chapter", doc.Text)
}

func TestAddDocuments_BackendFaultIsCoded(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.addErr = fmt.Errorf("disk full")

	err := m.AddDocuments(context.Background(), []string{"a"}, nil, []string{"1"})
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreAddFailure))
}

// ---------------------------------------------------------------------------
// Search and reads
// ---------------------------------------------------------------------------

func TestSearch_PassesThroughRankedResults(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.searchResults = []vectorstore.SearchResult{
		{ID: "1", Text: "closest", Score: 0.97},
		{ID: "2", Text: "further", Score: 0.42},
	}

	results, err := m.Search(context.Background(), "protagonist introduction", 2, map[string]any{"chapter": "1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, 2, backend.lastTopK)
	assert.Equal(t, map[string]any{"chapter": "1"}, backend.lastFilter)
}

func TestSearch_DefaultsTopK(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())

	_, err := m.Search(context.Background(), "anything", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, vectorstore.DefaultTopK, backend.lastTopK)
}

func TestSearch_DegradesToEmptyOnBackendFault(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.searchErr = fmt.Errorf("index corrupted")

	results, err := m.Search(context.Background(), "anything", 3, nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MissingAdapter(t *testing.T) {
	m, _ := newTestManager(t, testConfig(t), nil)

	_, err := m.Search(context.Background(), "anything", 3, nil)
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeAdapterMissing))
}

func TestAdapterFailureIsCoded(t *testing.T) {
	ctx := context.Background()
	adapter := newMockAdapter()
	adapter.embedErr = fmt.Errorf("model not loaded")
	m, _ := newTestManager(t, testConfig(t), adapter)

	err := m.AddDocuments(ctx, []string{"a"}, nil, []string{"1"})
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeAdapterEmbedFailure))

	_, err = m.Search(ctx, "anything", 3, nil)
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeAdapterEmbedFailure))
}

func TestGetDocuments_MissingIDsAreAbsent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"kept"}, nil, []string{"a"}))

	docs, err := m.GetDocuments(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	doc, err := m.GetDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestGetDocuments_DegradesOnBackendFault(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.getErr = fmt.Errorf("read failed")

	docs, err := m.GetDocuments(context.Background(), []string{"a"})
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

// ---------------------------------------------------------------------------
// Update and delete
// ---------------------------------------------------------------------------

func TestUpdateDocument_PreservesMetadataWhenNil(t *testing.T) {
	ctx := context.Background()
	adapter := newMockAdapter()
	m, backend := newTestManager(t, testConfig(t), adapter)
	require.NoError(t, m.AddDocuments(ctx, []string{"old text"}, []map[string]any{{"chapter": "3", "pov": "narrator"}}, []string{"doc-1"}))

	require.NoError(t, m.UpdateDocument(ctx, "doc-1", "new text", nil))

	doc := backend.doc(t, "doc-1")
	assert.Equal(t, "new text", doc.Text)
	assert.Equal(t, "3", doc.Metadata["chapter"])
	assert.Equal(t, "narrator", doc.Metadata["pov"])
	assert.Equal(t, 2, adapter.batchCalls, "update re-embeds the text")
}

func TestUpdateDocument_ReplacesExplicitMetadata(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"old"}, []map[string]any{{"chapter": "3"}}, []string{"doc-1"}))

	require.NoError(t, m.UpdateDocument(ctx, "doc-1", "new", map[string]any{"chapter": "4"}))

	doc := backend.doc(t, "doc-1")
	assert.Equal(t, "4", doc.Metadata["chapter"])
}

func TestUpdateDocument_MissingDocument(t *testing.T) {
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	err := m.UpdateDocument(context.Background(), "ghost", "text", nil)
	require.Error(t, err)
	assert.True(t, inkerr.IsNotFound(err))
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreDocumentNotFound))
}

func TestUpdateDocument_RequiresID(t *testing.T) {
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	err := m.UpdateDocument(context.Background(), "", "text", nil)
	require.Error(t, err)
	assert.True(t, inkerr.IsInvalidInput(err))
}

func TestDeleteThenStatsCount(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"a", "b"}, nil, []string{"1", "2"}))

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)

	require.NoError(t, m.DeleteDocument(ctx, "1"))

	stats, err = m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
}

func TestDeleteDocuments_BackendFaultIsCoded(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.deleteErr = fmt.Errorf("io failure")

	err := m.DeleteDocuments(context.Background(), []string{"1"})
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreDeleteFailure))
}

func TestGetStats_FaultIsCoded(t *testing.T) {
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	backend.statsErr = fmt.Errorf("walk failed")

	_, err := m.GetStats(context.Background())
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreStatsFailure))
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"a", "b"}, nil, []string{"1", "2"}))

	require.NoError(t, m.CreateSnapshot(ctx, "v1"))
	require.NoError(t, m.AddDocuments(ctx, []string{"c"}, nil, []string{"3"}))
	require.Equal(t, 3, backend.count())

	require.NoError(t, m.RestoreSnapshot("v1"))
	assert.Equal(t, 2, backend.count())
}

func TestRestoreSnapshot_MissingFailsCleanly(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"a"}, nil, []string{"1"}))

	err := m.RestoreSnapshot("ghost")
	require.Error(t, err)
	assert.True(t, inkerr.HasCode(err, inkerr.CodeStoreSnapshotNotFound))
	assert.True(t, inkerr.IsNotFound(err))
	assert.Equal(t, 1, backend.count(), "live data untouched")
}

func TestCreateSnapshot_WritesManifest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	m, _ := newTestManager(t, cfg, newMockAdapter())
	require.NoError(t, m.AddDocuments(ctx, []string{"a", "b"}, nil, []string{"1", "2"}))

	require.NoError(t, m.CreateSnapshot(ctx, "v1"))

	manifestPath := filepath.Join(filepath.Dir(cfg.PersistDir), "snapshots", "v1", "snapshot.yaml")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	var info vectorstore.SnapshotInfo
	require.NoError(t, yaml.Unmarshal(data, &info))
	assert.Equal(t, "v1", info.Name)
	assert.Equal(t, "sqlite", info.Backend)
	assert.Equal(t, "novel_embeddings", info.Collection)
	assert.Equal(t, int64(2), info.Count)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestListSnapshots_NewestFirst(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	require.NoError(t, m.CreateSnapshot(ctx, "older"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.CreateSnapshot(ctx, "newer"))

	infos, err := m.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "newer", infos[0].Name)
	assert.Equal(t, "older", infos[1].Name)
}

func TestListSnapshots_EmptyWhenNoneExist(t *testing.T) {
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	infos, err := m.ListSnapshots()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestListSnapshots_ToleratesMissingManifest(t *testing.T) {
	cfg := testConfig(t)
	m, _ := newTestManager(t, cfg, newMockAdapter())

	bare := filepath.Join(filepath.Dir(cfg.PersistDir), "snapshots", "handmade")
	require.NoError(t, os.MkdirAll(bare, 0o750))

	infos, err := m.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "handmade", infos[0].Name)
	assert.True(t, infos[0].CreatedAt.IsZero())
}

func TestSnapshotNames_Validated(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, testConfig(t), newMockAdapter())

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		err := m.CreateSnapshot(ctx, name)
		require.Error(t, err, "create %q", name)
		assert.True(t, inkerr.IsInvalidInput(err))

		err = m.RestoreSnapshot(name)
		require.Error(t, err, "restore %q", name)
		assert.True(t, inkerr.IsInvalidInput(err))
	}
}

// ---------------------------------------------------------------------------
// Locking
// ---------------------------------------------------------------------------

func TestMutations_AreSerialized(t *testing.T) {
	ctx := context.Background()
	m, backend := newTestManager(t, testConfig(t), newMockAdapter())

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("w%d-doc%d", w, i)
				errs <- m.AddDocuments(ctx, []string{id}, nil, []string{id})
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, workers*perWorker, backend.count())
	assert.Equal(t, 1, backend.maxInFlight, "mutating calls never overlap")
}
