package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/relevant-segments/ragcore/internal/store"
)

// MockBM25Index is a configurable BM25Index test double.
type MockBM25Index struct {
	SearchFn func(ctx context.Context, query string, limit int) ([]*store.BM25Result, error)
	IndexFn  func(ctx context.Context, docs []*store.Document) error
	DeleteFn func(ctx context.Context, docIDs []string) error
	StatsFn  func() *store.IndexStats
}

func (m *MockBM25Index) Index(ctx context.Context, docs []*store.Document) error {
	if m.IndexFn != nil {
		return m.IndexFn(ctx, docs)
	}
	return nil
}

func (m *MockBM25Index) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, docIDs)
	}
	return nil
}

func (m *MockBM25Index) AllIDs() ([]string, error) { return nil, nil }

func (m *MockBM25Index) Stats() *store.IndexStats {
	if m.StatsFn != nil {
		return m.StatsFn()
	}
	return &store.IndexStats{}
}

func (m *MockBM25Index) Save(path string) error { return nil }
func (m *MockBM25Index) Load(path string) error { return nil }
func (m *MockBM25Index) Close() error           { return nil }

var _ store.BM25Index = (*MockBM25Index)(nil)

// MockVectorStore is a configurable VectorStore test double.
type MockVectorStore struct {
	SearchFn func(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
	AddFn    func(ctx context.Context, ids []string, vectors [][]float32) error
	DeleteFn func(ctx context.Context, ids []string) error
	CountFn  func() int
}

func (m *MockVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if m.AddFn != nil {
		return m.AddFn(ctx, ids, vectors)
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, k)
	}
	return nil, nil
}

func (m *MockVectorStore) Delete(ctx context.Context, ids []string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, ids)
	}
	return nil
}

func (m *MockVectorStore) AllIDs() []string        { return nil }
func (m *MockVectorStore) Contains(id string) bool { return false }

func (m *MockVectorStore) Count() int {
	if m.CountFn != nil {
		return m.CountFn()
	}
	return 0
}

func (m *MockVectorStore) Save(path string) error { return nil }
func (m *MockVectorStore) Load(path string) error { return nil }
func (m *MockVectorStore) Close() error           { return nil }

var _ store.VectorStore = (*MockVectorStore)(nil)

// MockEmbedder is a configurable Embedder test double.
type MockEmbedder struct {
	EmbedFn      func(ctx context.Context, text string) ([]float32, error)
	DimensionsFn func() int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFn != nil {
		return m.EmbedFn(ctx, text)
	}
	return make([]float32, m.Dimensions()), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.DimensionsFn != nil {
		return m.DimensionsFn()
	}
	return 768
}

func (m *MockEmbedder) ModelName() string                 { return "mock-embedder" }
func (m *MockEmbedder) Available(ctx context.Context) bool { return true }
func (m *MockEmbedder) Close() error                      { return nil }

// MockMetadataStore is an in-memory MetadataStore test double.
type MockMetadataStore struct {
	mu     sync.RWMutex
	chunks map[string]*store.DocumentChunk
	state  map[string]string
}

func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{
		chunks: make(map[string]*store.DocumentChunk),
		state:  make(map[string]string),
	}
}

func (m *MockMetadataStore) SaveChunks(ctx context.Context, chunks []*store.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MockMetadataStore) GetChunk(ctx context.Context, id string) (*store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	return c, nil
}

func (m *MockMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*store.DocumentChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockMetadataStore) GetChunkRange(ctx context.Context, docID string, chunkStart, chunkEnd int) ([]*store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*store.DocumentChunk
	for _, c := range m.chunks {
		if c.DocID == docID && c.ChunkIndex >= chunkStart && c.ChunkIndex < chunkEnd {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (m *MockMetadataStore) DeleteChunks(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.chunks, id)
	}
	return nil
}

func (m *MockMetadataStore) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocID == docID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MockMetadataStore) ListDocuments(ctx context.Context) ([]store.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range m.chunks {
		counts[c.DocID]++
	}
	docs := make([]store.DocumentSummary, 0, len(counts))
	for id, n := range counts {
		docs = append(docs, store.DocumentSummary{DocID: id, ChunkCount: n})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs, nil
}

func (m *MockMetadataStore) GetState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state[key], nil
}

func (m *MockMetadataStore) SetState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = value
	return nil
}

func (m *MockMetadataStore) Close() error { return nil }

var _ store.MetadataStore = (*MockMetadataStore)(nil)
