// Package store provides vector storage (HNSW/pgvector), BM25 keyword indexing,
// and chunk-text persistence (SQLite). This is the persistence layer underneath
// the search and relevant-segment-extraction pipeline.
package store

import (
	"context"
	"fmt"
	"time"
)

// DocumentChunk is a retrievable unit of content belonging to a source
// document, addressed by the same (doc_id, chunk_index) coordinate system
// internal/rse uses for meta-document construction and back-translation.
type DocumentChunk struct {
	ID         string            // stable content-addressable chunk ID
	DocID      string            // parent document identifier
	ChunkIndex int               // 0-indexed position within the document
	Text       string            // chunk content
	Metadata   map[string]string // source-specific metadata (title, section, page, ...)
	CreatedAt  time.Time
}

// MetadataStore persists chunk text and lets the knowledge-base pipeline
// fetch text for a contiguous chunk_start..chunk_end range after segment
// selection has picked coordinates, mirroring get_segment_text_from_database
// in the system this package's algorithms are derived from.
type MetadataStore interface {
	// SaveChunks upserts chunk text and metadata.
	SaveChunks(ctx context.Context, chunks []*DocumentChunk) error

	// GetChunk fetches a single chunk by ID.
	GetChunk(ctx context.Context, id string) (*DocumentChunk, error)

	// GetChunks batch-fetches chunks by ID, for enriching fused search results
	// without one round trip per result.
	GetChunks(ctx context.Context, ids []string) ([]*DocumentChunk, error)

	// GetChunkRange fetches chunks [chunkStart, chunkEnd) of a document, in
	// chunk_index order, for assembling a selected segment's text.
	GetChunkRange(ctx context.Context, docID string, chunkStart, chunkEnd int) ([]*DocumentChunk, error)

	// DeleteChunks removes chunks by ID.
	DeleteChunks(ctx context.Context, ids []string) error

	// DeleteDocument removes all chunks belonging to a document.
	DeleteDocument(ctx context.Context, docID string) error

	// ListDocuments summarizes the documents in the store, ordered by doc ID.
	ListDocuments(ctx context.Context) ([]DocumentSummary, error)

	// GetState/SetState hold small pieces of runtime state (schema version,
	// embedding model in use, etc.) as a flat key-value store.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// DocumentSummary describes one document held in the chunk store.
type DocumentSummary struct {
	DocID      string
	ChunkCount int
}

// CurrentSchemaVersion is the current chunk-store schema version.
const CurrentSchemaVersion = 1

// State keys used to detect embedder changes between index builds.
const (
	StateKeyIndexDimension = "index_embedding_dimension"
	StateKeyIndexModel     = "index_embedding_model"
)

// Document is the unit BM25 indexes: an opaque ID plus the text to tokenize.
type Document struct {
	ID      string // chunk ID
	Content string // text content
}

// BM25Result is a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats describes a BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using the BM25 ranking function.
type BM25Index interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// StopWords is a list of words to filter out during tokenization.
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English stop words to filter out of
// BM25 tokenization.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"of", "to", "in", "on", "at", "for", "with", "by", "as", "it",
	"this", "that", "these", "those", "be", "been", "being",
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (model-dependent).
	Dimensions int

	// Quantization is the vector precision: "f32", "f16", "i8" (default: "f16").
	// Only meaningful to the in-process HNSW backend; ignored by pgvector.
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer (default: 32).
	M int

	// EfConstruction is HNSW build-time search width (default: 128).
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for a vector store of
// the given dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides nearest-neighbor semantic search.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks).
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence. Backends that persist remotely (pgvector) may treat these
	// as no-ops.
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a query or insert vector's dimensionality
// does not match the store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
