package mcp

import (
	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/rse"
)

// QueryKBInput defines the input schema for the query_knowledge_base tool.
type QueryKBInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the knowledge base"`
}

// ExtractSegmentsInput defines the input schema for the extract_segments tool.
type ExtractSegmentsInput struct {
	Queries []string `json:"queries" jsonschema:"search queries to run, one per information need"`
}

// QueryKBOutput defines the output schema shared by query_knowledge_base and
// extract_segments.
type QueryKBOutput struct {
	RequestID string          `json:"request_id" jsonschema:"request identifier for log correlation"`
	Queries   []string        `json:"queries" jsonschema:"the search queries that were executed"`
	Segments  []SegmentOutput `json:"segments" jsonschema:"selected document segments in selection order"`
	Answer    string          `json:"answer,omitempty" jsonschema:"synthesized answer when an LLM is configured"`
	Cached    bool            `json:"cached,omitempty" jsonschema:"true when served from the answer cache"`
}

// SegmentOutput is one selected segment.
type SegmentOutput struct {
	DocID      string  `json:"doc_id" jsonschema:"source document identifier"`
	ChunkStart int     `json:"chunk_start" jsonschema:"first chunk index of the segment (inclusive)"`
	ChunkEnd   int     `json:"chunk_end" jsonschema:"end chunk index of the segment (exclusive)"`
	Score      float64 `json:"score" jsonschema:"summed relevance value of the segment"`
	Text       string  `json:"text" jsonschema:"segment text"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query  string   `json:"query" jsonschema:"the search query to execute"`
	Limit  int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	DocIDs []string `json:"doc_ids,omitempty" jsonschema:"restrict results to these documents"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput defines a single chunk-level search result.
type SearchResultOutput struct {
	DocID        string   `json:"doc_id" jsonschema:"source document identifier"`
	ChunkIndex   int      `json:"chunk_index" jsonschema:"chunk position within the document"`
	Text         string   `json:"text" jsonschema:"matched chunk text"`
	Score        float64  `json:"score" jsonschema:"relevance score between 0 and 1"`
	MatchReason  string   `json:"match_reason,omitempty" jsonschema:"human-readable explanation of why this result matched"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms that matched this result"`
	InBothLists  bool     `json:"in_both_lists,omitempty" jsonschema:"true if result appeared in both keyword and semantic search"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	KnowledgeBase KnowledgeBaseInfo `json:"knowledge_base"`
	Stats         IndexStats        `json:"stats"`
	Embeddings    EmbeddingInfo     `json:"embeddings"`
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	IndexedChunks int `json:"indexed_chunks"` // chunks in the BM25 index
	VectorCount   int `json:"vector_count"`   // vectors in the vector store
}

// EmbeddingInfo contains information about the embedding configuration.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	// Runtime state - allows AI clients to adjust search strategy
	ActualProvider   string `json:"actual_provider"`    // "ollama", "static", or "none" (no embedder)
	ActualModel      string `json:"actual_model"`       // e.g., "nomic-embed-text" or "static"
	Dimensions       int    `json:"dimensions"`         // model-dependent, 256 for static
	IsFallbackActive bool   `json:"is_fallback_active"` // true if using static fallback
	SemanticQuality  string `json:"semantic_quality"`   // "high" (model), "low" (static), or "none" (no embedder)
}

// ToQueryKBOutput converts a pipeline result to the tool output shape.
func ToQueryKBOutput(result *kb.QueryResult) QueryKBOutput {
	out := QueryKBOutput{
		RequestID: result.RequestID,
		Queries:   result.Queries,
		Segments:  make([]SegmentOutput, 0, len(result.Segments)),
		Answer:    result.Answer,
		Cached:    result.Cached,
	}
	for _, seg := range result.Segments {
		out.Segments = append(out.Segments, ToSegmentOutput(seg))
	}
	return out
}

// ToSegmentOutput converts one segment to the tool output shape.
func ToSegmentOutput(seg rse.SegmentInfo) SegmentOutput {
	return SegmentOutput{
		DocID:      seg.DocID,
		ChunkStart: seg.ChunkStart,
		ChunkEnd:   seg.ChunkEnd,
		Score:      seg.Score,
		Text:       seg.Text,
	}
}
