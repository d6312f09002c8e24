package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/relevant-segments/ragcore/internal/config"
	"github.com/relevant-segments/ragcore/internal/embed"
	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/llm"
	"github.com/relevant-segments/ragcore/internal/search"
	"github.com/relevant-segments/ragcore/internal/store"
	"github.com/relevant-segments/ragcore/internal/telemetry"
)

// stack holds the wired-up collaborators behind one knowledge base.
type stack struct {
	cfg      *config.Config
	root     string
	metadata store.MetadataStore
	engine   *search.Engine
	embedder embed.Embedder
	vector   store.VectorStore
	kb       *kb.KnowledgeBase
	metrics  *telemetry.QueryMetrics

	closers []func() error
}

// openStack loads config for the current project and opens the stores,
// embedder, search engine, and knowledge base.
func openStack(ctx context.Context) (*stack, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	s := &stack{cfg: cfg, root: root}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	dataDir := cfg.Store.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}

	// Chunk-text store
	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	s.metadata = metadata
	s.closers = append(s.closers, metadata.Close)

	// BM25 index
	bm25, err := store.NewBM25IndexWithBackend(filepath.Join(dataDir, "bm25"), store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		return nil, fmt.Errorf("open BM25 index: %w", err)
	}
	s.closers = append(s.closers, bm25.Close)

	// Embedder
	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	s.embedder = embedder
	s.closers = append(s.closers, embedder.Close)

	// Vector store
	vector, err := openVectorStore(ctx, cfg, dataDir, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	s.vector = vector
	s.closers = append(s.closers, vector.Close)

	// Search engine
	engineConfig := search.DefaultConfig()
	if cfg.Search.MaxResults > 0 {
		engineConfig.DefaultLimit = cfg.Search.MaxResults
	}
	engineConfig.RRFConstant = cfg.Search.RRFConstant
	engineConfig.DefaultWeights = search.Weights{
		BM25:     cfg.Search.BM25Weight,
		Semantic: cfg.Search.SemanticWeight,
	}

	s.metrics = telemetry.NewQueryMetrics(nil)
	s.closers = append(s.closers, s.metrics.Close)
	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineConfig,
		search.WithClassifier(search.NewHybridClassifier(nil)),
		search.WithMetrics(s.metrics),
		search.WithMultiQuerySearch(search.NewPatternDecomposer()))
	if err != nil {
		return nil, fmt.Errorf("create search engine: %w", err)
	}
	s.engine = engine

	// Knowledge base with optional LLM and answer cache
	kbOpts := []kb.Option{
		kb.WithMaxQueries(cfg.Search.MaxQueries),
		kb.WithMetrics(s.metrics),
	}
	if cfg.LLM.Provider != "" {
		client := llm.NewAnthropicClient(llm.AnthropicConfig{
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		kbOpts = append(kbOpts, kb.WithLLM(client))
		s.closers = append(s.closers, client.Close)
	}
	if cfg.Cache.Enabled {
		ttl, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			slog.Warn("invalid cache.ttl, using default", slog.String("value", cfg.Cache.TTL))
			ttl = 0
		}
		cache := kb.NewRedisAnswerCache(kb.RedisCacheConfig{
			Addr: cfg.Cache.Addr,
			TTL:  ttl,
		})
		kbOpts = append(kbOpts, kb.WithAnswerCache(cache))
		s.closers = append(s.closers, cache.Close)
	}

	knowledgeBase, err := kb.New(engine, metadata, cfg.RseParams(), kbOpts...)
	if err != nil {
		return nil, err
	}
	s.kb = knowledgeBase

	ok = true
	return s, nil
}

// openVectorStore opens the configured vector backend and, for HNSW, loads
// persisted vectors when present.
func openVectorStore(ctx context.Context, cfg *config.Config, dataDir string, dimensions int) (store.VectorStore, error) {
	switch cfg.Store.VectorBackend {
	case "pgvector":
		vector, err := store.NewPgVectorStore(ctx, store.PgVectorConfig{DSN: cfg.Store.PostgresDSN}, store.DefaultVectorStoreConfig(dimensions))
		if err != nil {
			return nil, fmt.Errorf("open pgvector store: %w", err)
		}
		return vector, nil

	default: // hnsw
		vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dimensions))
		if err != nil {
			return nil, fmt.Errorf("create vector store: %w", err)
		}
		vectorPath := filepath.Join(dataDir, "vectors.hnsw")
		if _, err := os.Stat(vectorPath); err == nil {
			if loadErr := vector.Load(vectorPath); loadErr != nil {
				slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
			}
		}
		return vector, nil
	}
}

// saveVectors persists the in-process vector index to the data dir. The
// pgvector backend persists remotely and treats Save as a no-op.
func (s *stack) saveVectors() error {
	dataDir := s.cfg.Store.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(s.root, dataDir)
	}
	return s.vector.Save(filepath.Join(dataDir, "vectors.hnsw"))
}

// Close releases every opened resource, last-opened first.
func (s *stack) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
