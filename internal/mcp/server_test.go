package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevant-segments/ragcore/internal/config"
	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/rse"
	"github.com/relevant-segments/ragcore/internal/search"
	"github.com/relevant-segments/ragcore/internal/store"
)

// stubEngine serves a canned doc-a ranked list for every query.
type stubEngine struct{}

func (stubEngine) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	results := make([]*search.SearchResult, 0, 5)
	for i := 0; i < 5; i++ {
		results = append(results, &search.SearchResult{
			Chunk: &store.DocumentChunk{
				ID:         fmt.Sprintf("doc-a:%d", i),
				DocID:      "doc-a",
				ChunkIndex: i,
				Text:       fmt.Sprintf("passage %d", i),
			},
			Score:        1.0 - float64(i)*0.05,
			MatchedTerms: []string{"revenue"},
		})
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return search.FilterByDocIDs(results, opts.DocIDs), nil
}

func (e stubEngine) SearchBatch(ctx context.Context, queries []string, opts search.SearchOptions) ([][]*search.SearchResult, error) {
	out := make([][]*search.SearchResult, len(queries))
	for i, q := range queries {
		r, err := e.Search(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (stubEngine) Index(ctx context.Context, chunks []*store.DocumentChunk) error { return nil }
func (stubEngine) Delete(ctx context.Context, chunkIDs []string) error            { return nil }
func (stubEngine) Stats() *search.EngineStats {
	return &search.EngineStats{
		BM25Stats:   &store.IndexStats{DocumentCount: 5},
		VectorCount: 5,
	}
}
func (stubEngine) Close() error { return nil }

// stubMetadata is an in-memory MetadataStore with a fixed doc-a corpus.
type stubMetadata struct {
	mu     sync.RWMutex
	chunks map[string]*store.DocumentChunk
}

func newStubMetadata() *stubMetadata {
	m := &stubMetadata{chunks: make(map[string]*store.DocumentChunk)}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("doc-a:%d", i)
		m.chunks[id] = &store.DocumentChunk{
			ID:         id,
			DocID:      "doc-a",
			ChunkIndex: i,
			Text:       fmt.Sprintf("passage %d", i),
		}
	}
	return m
}

func (m *stubMetadata) SaveChunks(ctx context.Context, chunks []*store.DocumentChunk) error {
	return nil
}

func (m *stubMetadata) GetChunk(ctx context.Context, id string) (*store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	return c, nil
}

func (m *stubMetadata) GetChunks(ctx context.Context, ids []string) ([]*store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*store.DocumentChunk
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *stubMetadata) GetChunkRange(ctx context.Context, docID string, chunkStart, chunkEnd int) ([]*store.DocumentChunk, error) {
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

func (m *stubMetadata) DeleteChunks(ctx context.Context, ids []string) error    { return nil }
func (m *stubMetadata) DeleteDocument(ctx context.Context, docID string) error  { return nil }
func (m *stubMetadata) GetState(ctx context.Context, key string) (string, error) { return "", nil }
func (m *stubMetadata) SetState(ctx context.Context, key, value string) error   { return nil }
func (m *stubMetadata) Close() error                                            { return nil }

func (m *stubMetadata) ListDocuments(ctx context.Context) ([]store.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range m.chunks {
		counts[c.DocID]++
	}
	var docs []store.DocumentSummary
	for id, n := range counts {
		docs = append(docs, store.DocumentSummary{DocID: id, ChunkCount: n})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs, nil
}

var _ store.MetadataStore = (*stubMetadata)(nil)

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()

	knowledgeBase, err := kb.New(stubEngine{}, newStubMetadata(), rse.DefaultRseParams())
	require.NoError(t, err)

	srv, err := NewServer(knowledgeBase, stubEngine{}, newStubMetadata(), nil, config.NewConfig())
	require.NoError(t, err)
	return srv
}

func TestNewServer_Validation(t *testing.T) {
	knowledgeBase, err := kb.New(stubEngine{}, newStubMetadata(), rse.DefaultRseParams())
	require.NoError(t, err)

	_, err = NewServer(nil, stubEngine{}, newStubMetadata(), nil, nil)
	assert.Error(t, err)

	_, err = NewServer(knowledgeBase, nil, newStubMetadata(), nil, nil)
	assert.Error(t, err)

	_, err = NewServer(knowledgeBase, stubEngine{}, nil, nil, nil)
	assert.Error(t, err)

	// nil config falls back to defaults
	srv, err := NewServer(knowledgeBase, stubEngine{}, newStubMetadata(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestServer_Info(t *testing.T) {
	srv := newTestMCPServer(t)
	name, _ := srv.Info()
	assert.Equal(t, "ragcore", name)
}

func TestServer_ListTools(t *testing.T) {
	srv := newTestMCPServer(t)

	tools := srv.ListTools()
	require.Len(t, tools, 4)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.Contains(t, names, "query_knowledge_base")
	assert.Contains(t, names, "extract_segments")
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "index_status")
}

func TestCallTool_UnknownTool(t *testing.T) {
	srv := newTestMCPServer(t)

	_, err := srv.CallTool(context.Background(), "does_not_exist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCallTool_Search(t *testing.T) {
	srv := newTestMCPServer(t)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "revenue",
		"limit": float64(3),
	})
	require.NoError(t, err)

	markdown, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, markdown, "Search Results")
	assert.Contains(t, markdown, "doc-a chunk 0")
}

func TestCallTool_Search_Validation(t *testing.T) {
	srv := newTestMCPServer(t)

	_, err := srv.CallTool(context.Background(), "search", map[string]any{})
	assert.Error(t, err)

	_, err = srv.CallTool(context.Background(), "search", map[string]any{"query": "   "})
	assert.Error(t, err)
}

func TestCallTool_ExtractSegments(t *testing.T) {
	srv := newTestMCPServer(t)

	result, err := srv.CallTool(context.Background(), "extract_segments", map[string]any{
		"queries": []any{"revenue", "margins"},
	})
	require.NoError(t, err)

	markdown, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, markdown, "Relevant Segments")
	assert.Contains(t, markdown, "doc-a chunks")
}

func TestCallTool_ExtractSegments_Validation(t *testing.T) {
	srv := newTestMCPServer(t)

	_, err := srv.CallTool(context.Background(), "extract_segments", map[string]any{})
	assert.Error(t, err)

	_, err = srv.CallTool(context.Background(), "extract_segments", map[string]any{
		"queries": []any{"", "  "},
	})
	assert.Error(t, err)
}

func TestCallTool_QueryKnowledgeBase(t *testing.T) {
	srv := newTestMCPServer(t)

	result, err := srv.CallTool(context.Background(), "query_knowledge_base", map[string]any{
		"question": "how did revenue develop",
	})
	require.NoError(t, err)

	markdown, ok := result.(string)
	require.True(t, ok)
	// No LLM configured: segments only, no answer section
	assert.Contains(t, markdown, "Supporting Segments")
	assert.False(t, strings.Contains(markdown, "## Answer"))
}

func TestCallTool_IndexStatus(t *testing.T) {
	srv := newTestMCPServer(t)

	result, err := srv.CallTool(context.Background(), "index_status", nil)
	require.NoError(t, err)

	status, ok := result.(*IndexStatusOutput)
	require.True(t, ok)

	assert.Equal(t, 1, status.KnowledgeBase.DocumentCount)
	assert.Equal(t, 5, status.KnowledgeBase.ChunkCount)
	assert.Equal(t, []string{"doc-a"}, status.KnowledgeBase.DocumentIDs)
	assert.Equal(t, 5, status.Stats.IndexedChunks)
	assert.Equal(t, 5, status.Stats.VectorCount)

	// No embedder wired: reported unavailable with static fallback semantics
	assert.Equal(t, "none", status.Embeddings.ActualProvider)
	assert.Equal(t, "unavailable", status.Embeddings.Status)
	assert.True(t, status.Embeddings.IsFallbackActive)
}

func TestReadResource_Document(t *testing.T) {
	srv := newTestMCPServer(t)

	content, err := srv.ReadResource(context.Background(), "doc://doc-a")
	require.NoError(t, err)
	assert.Equal(t, "doc://doc-a", content.URI)
	assert.Contains(t, content.Content, "passage 0")
	assert.Contains(t, content.Content, "passage 4")
	assert.Equal(t, "text/plain", content.MIMEType)
}

func TestReadResource_Chunk(t *testing.T) {
	srv := newTestMCPServer(t)

	content, err := srv.ReadResource(context.Background(), "chunk://doc-a:2")
	require.NoError(t, err)
	assert.Equal(t, "passage 2", content.Content)
}

func TestReadResource_NotFound(t *testing.T) {
	srv := newTestMCPServer(t)

	_, err := srv.ReadResource(context.Background(), "doc://ghost")
	assert.Error(t, err)

	_, err = srv.ReadResource(context.Background(), "chunk://ghost")
	assert.Error(t, err)

	_, err = srv.ReadResource(context.Background(), "weird://thing")
	assert.Error(t, err)
}

func TestRegisterResources(t *testing.T) {
	srv := newTestMCPServer(t)
	require.NoError(t, srv.RegisterResources(context.Background()))
}

func TestDetectKnowledgeBase(t *testing.T) {
	info, err := DetectKnowledgeBase(context.Background(), newStubMetadata())
	require.NoError(t, err)
	assert.Equal(t, 1, info.DocumentCount)
	assert.Equal(t, 5, info.ChunkCount)
}
