package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/relevant-segments/ragcore/internal/output"
	"github.com/relevant-segments/ragcore/internal/store"
)

// indexBatchSize is how many chunks are indexed per engine call.
const indexBatchSize = 128

// chunkRecord is one line of the JSONL chunk file. Chunking itself happens
// upstream; ragcore indexes pre-chunked documents.
type chunkRecord struct {
	DocID      string            `json:"doc_id"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func newIndexCmd() *cobra.Command {
	var chunksPath string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index pre-chunked documents",
		Long: `Index pre-chunked documents into the knowledge base.

The input is a JSONL file with one chunk per line:

  {"doc_id": "10k_2023.pdf", "chunk_index": 0, "text": "..."}

Chunking and embedding-model choice happen upstream of ragcore; this
command embeds each chunk, writes the BM25 and vector indices, and
persists chunk text for segment assembly. Re-indexing a (doc_id,
chunk_index) pair replaces it.`,
		Example: `  ragcore index --chunks corpus.jsonl
  cat corpus.jsonl | ragcore index --chunks -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, chunksPath)
		},
	}

	cmd.Flags().StringVar(&chunksPath, "chunks", "", "JSONL chunk file ('-' for stdin)")
	_ = cmd.MarkFlagRequired("chunks")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, chunksPath string) error {
	out := output.New(cmd.OutOrStdout())

	var reader io.Reader
	if chunksPath == "-" {
		reader = cmd.InOrStdin()
	} else {
		f, err := os.Open(chunksPath)
		if err != nil {
			return fmt.Errorf("open chunks file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var batch []*store.DocumentChunk
	total := 0
	line := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := stack.engine.Index(ctx, batch); err != nil {
			return fmt.Errorf("index batch ending at line %d: %w", line, err)
		}
		total += len(batch)
		out.Progress(total, total, "chunks indexed")
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec chunkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("line %d: invalid chunk record: %w", line, err)
		}
		if rec.DocID == "" {
			return fmt.Errorf("line %d: doc_id is required", line)
		}
		if rec.ChunkIndex < 0 {
			return fmt.Errorf("line %d: chunk_index must be non-negative", line)
		}

		batch = append(batch, &store.DocumentChunk{
			ID:         fmt.Sprintf("%s:%d", rec.DocID, rec.ChunkIndex),
			DocID:      rec.DocID,
			ChunkIndex: rec.ChunkIndex,
			Text:       rec.Text,
			Metadata:   rec.Metadata,
		})

		if len(batch) >= indexBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read chunks: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	// Persist HNSW vectors for the next process
	if stack.cfg.Store.VectorBackend != "pgvector" {
		if err := stack.saveVectors(); err != nil {
			out.Warningf("failed to persist vectors: %v", err)
		}
	}

	out.ProgressDone()
	out.Successf("Indexed %d chunks", total)
	return nil
}
