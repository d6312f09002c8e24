//go:build debug

package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/relevant-segments/ragcore/internal/embed"
	"github.com/relevant-segments/ragcore/internal/store"
)

// TestDebugFullSearchFlow runs a real search against a local .ragcore data
// directory. For interactive debugging only.
func TestDebugFullSearchFlow(t *testing.T) {
	if os.Getenv("RAGCORE_DEBUG_SEARCH") != "1" {
		t.Skip("Skipping debug test (set RAGCORE_DEBUG_SEARCH=1 to run)")
	}

	ctx := context.Background()
	dataDir := os.Getenv("RAGCORE_DEBUG_DATA_DIR")
	if dataDir == "" {
		dataDir = ".ragcore"
	}
	query := os.Getenv("RAGCORE_DEBUG_QUERY")
	if query == "" {
		query = "revenue guidance"
	}

	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		t.Fatalf("Failed to open metadata: %v", err)
	}
	defer metadata.Close()

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), "")
	if err != nil {
		t.Fatalf("Failed to open BM25: %v", err)
	}
	defer bm25.Close()

	embedder := embed.NewStaticEmbedder()
	vectorConfig := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorConfig)
	if err != nil {
		t.Fatalf("Failed to create vector store: %v", err)
	}
	defer vector.Close()

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if err := vector.Load(vectorPath); err != nil {
		t.Logf("Warning: Could not load vectors: %v", err)
	}

	engineConfig := DefaultConfig()
	engine := New(bm25, vector, embedder, metadata, engineConfig)

	fmt.Println("\n=== Testing Full Search Flow ===")
	fmt.Printf("Query: %s\n", query)

	results, err := engine.Search(ctx, query, SearchOptions{Limit: 10, Explain: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	fmt.Printf("\n=== Search Results (%d) ===\n", len(results))
	for i, r := range results {
		location := "unknown"
		if r.Chunk != nil {
			location = fmt.Sprintf("%s:%d", r.Chunk.DocID, r.Chunk.ChunkIndex)
		}
		fmt.Printf("%d. Chunk=%s Score=%.4f BM25=%.4f Vec=%.4f InBoth=%v\n",
			i+1, location, r.Score, r.BM25Score, r.VecScore, r.InBothLists)
	}

	fmt.Println("\n=== Direct BM25 Results ===")
	bm25Results, err := bm25.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("BM25 search failed: %v", err)
	}
	for i, r := range bm25Results {
		chunks, _ := metadata.GetChunks(ctx, []string{r.DocID})
		location := "not_found"
		if len(chunks) > 0 {
			location = fmt.Sprintf("%s:%d", chunks[0].DocID, chunks[0].ChunkIndex)
		}
		fmt.Printf("%d. ID=%s Chunk=%s Score=%.4f\n", i+1, r.DocID, location, r.Score)
	}
}
