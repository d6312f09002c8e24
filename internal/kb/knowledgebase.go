// Package kb is the enclosing query pipeline around the segment-extraction
// core: it fans a question (or pre-formed queries) out to hybrid search,
// hands the ranked result lists to the extractor, fetches the selected
// segments' text from the chunk store, and optionally synthesizes a final
// answer with the LLM collaborator.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	ragerrors "github.com/relevant-segments/ragcore/internal/errors"
	"github.com/relevant-segments/ragcore/internal/llm"
	"github.com/relevant-segments/ragcore/internal/rse"
	"github.com/relevant-segments/ragcore/internal/search"
	"github.com/relevant-segments/ragcore/internal/store"
	"github.com/relevant-segments/ragcore/internal/telemetry"
)

// ErrNoQueries is returned when a query request carries no usable queries.
var ErrNoQueries = errors.New("kb: no queries provided")

// QueryResult is the outcome of one pipeline run.
type QueryResult struct {
	// RequestID correlates this run across logs and telemetry.
	RequestID string `json:"request_id"`

	// Queries are the search queries that were executed (caller-supplied or
	// LLM-generated).
	Queries []string `json:"queries"`

	// Segments are the selected segments with text populated, in selection
	// order.
	Segments []rse.SegmentInfo `json:"segments"`

	// Answer is the synthesized response. Empty when no LLM is configured or
	// synthesis was not requested.
	Answer string `json:"answer,omitempty"`

	// Cached reports whether this result came from the answer cache.
	Cached bool `json:"cached,omitempty"`
}

// AnswerCache caches full query results keyed by question. Implementations
// must be safe for concurrent use; a nil cache disables caching.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*QueryResult, bool)
	Set(ctx context.Context, key string, result *QueryResult) error
	Close() error
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithLLM attaches the LLM collaborator used for auto-query generation and
// response synthesis.
func WithLLM(client llm.Client) Option {
	return func(kb *KnowledgeBase) { kb.llm = client }
}

// WithAnswerCache attaches a cache in front of Ask.
func WithAnswerCache(cache AnswerCache) Option {
	return func(kb *KnowledgeBase) { kb.cache = cache }
}

// WithGuidance sets the auto-query guidance describing the corpus.
func WithGuidance(guidance string) Option {
	return func(kb *KnowledgeBase) { kb.guidance = guidance }
}

// WithMaxQueries caps how many search queries one question fans out to.
func WithMaxQueries(n int) Option {
	return func(kb *KnowledgeBase) {
		if n > 0 {
			kb.maxQueries = n
		}
	}
}

// WithMetrics attaches a query telemetry collector.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(kb *KnowledgeBase) { kb.metrics = m }
}

// KnowledgeBase wires the retrieval, extraction, storage, and LLM
// collaborators into the query pipeline.
type KnowledgeBase struct {
	engine     search.SearchEngine
	chunks     store.MetadataStore
	params     rse.RseParams
	llm        llm.Client
	cache      AnswerCache
	metrics    *telemetry.QueryMetrics
	guidance   string
	maxQueries int
	logger     *slog.Logger
}

// New creates a KnowledgeBase. engine and chunks are required; the LLM and
// cache collaborators are optional.
func New(engine search.SearchEngine, chunks store.MetadataStore, params rse.RseParams, opts ...Option) (*KnowledgeBase, error) {
	if engine == nil {
		return nil, errors.New("kb: search engine is required")
	}
	if chunks == nil {
		return nil, errors.New("kb: chunk store is required")
	}
	if err := params.Validate(); err != nil {
		return nil, foldRseError(err)
	}

	kb := &KnowledgeBase{
		engine:     engine,
		chunks:     chunks,
		params:     params,
		maxQueries: llm.DefaultMaxQueries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb, nil
}

// Params returns the extraction parameters in use.
func (kb *KnowledgeBase) Params() rse.RseParams {
	return kb.params
}

// Query runs the pipeline over pre-formed search queries: one hybrid search
// per query, segment extraction over the ranked lists, then text fetch for
// the selected segments.
func (kb *KnowledgeBase) Query(ctx context.Context, queries []string) (*QueryResult, error) {
	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoQueries
	}
	if len(cleaned) > kb.maxQueries {
		cleaned = cleaned[:kb.maxQueries]
	}

	requestID := uuid.NewString()
	start := time.Now()

	batches, err := kb.engine.SearchBatch(ctx, cleaned, search.SearchOptions{})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	segments, err := rse.ExtractSegments(search.ToRankedLists(batches), kb.params)
	if err != nil {
		return nil, foldRseError(err)
	}

	for i := range segments {
		text, err := kb.fetchSegmentText(ctx, segments[i].DocID, segments[i].ChunkStart, segments[i].ChunkEnd)
		if err != nil {
			return nil, fmt.Errorf("fetch segment text for %s[%d:%d): %w",
				segments[i].DocID, segments[i].ChunkStart, segments[i].ChunkEnd, err)
		}
		segments[i].Text = text
	}

	kb.logger.Info("kb_query_complete",
		slog.String("request_id", requestID),
		slog.Int("queries", len(cleaned)),
		slog.Int("segments", len(segments)),
		slog.Duration("duration", time.Since(start)))

	return &QueryResult{
		RequestID: requestID,
		Queries:   cleaned,
		Segments:  segments,
	}, nil
}

// Ask answers a single question: generate search queries (LLM when
// configured, otherwise the question itself), run Query, then synthesize an
// answer over the segment text when an LLM is configured. Results are served
// from the answer cache when one is attached.
func (kb *KnowledgeBase) Ask(ctx context.Context, question string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrNoQueries
	}

	if kb.cache != nil {
		if cached, ok := kb.cache.Get(ctx, question); ok {
			kb.logger.Debug("kb_ask_cache_hit", slog.String("question", question))
			cached.Cached = true
			return cached, nil
		}
	}

	queries := []string{question}
	if kb.llm != nil {
		generated, err := kb.llm.GenerateSearchQueries(ctx, question, kb.guidance, kb.maxQueries)
		if err != nil {
			// Retrieval still works with the raw question; auto-query is an
			// enhancement, not a dependency.
			kb.logger.Warn("auto-query generation failed, searching with the question itself",
				slog.String("error", err.Error()))
		} else if len(generated) > 0 {
			queries = generated
		}
	}

	result, err := kb.Query(ctx, queries)
	if err != nil {
		return nil, err
	}

	if kb.llm != nil && len(result.Segments) > 0 {
		answer, err := kb.llm.SynthesizeResponse(ctx, question, SegmentContext(result.Segments))
		if err != nil {
			return nil, fmt.Errorf("synthesize response: %w", err)
		}
		result.Answer = answer
	}

	if kb.cache != nil {
		if err := kb.cache.Set(ctx, question, result); err != nil {
			kb.logger.Warn("answer cache write failed", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// fetchSegmentText assembles the text of one segment from its chunk range.
func (kb *KnowledgeBase) fetchSegmentText(ctx context.Context, docID string, chunkStart, chunkEnd int) (string, error) {
	chunks, err := kb.chunks.GetChunkRange(ctx, docID, chunkStart, chunkEnd)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n"), nil
}

// foldRseError folds the extractor's sentinel errors into the shared
// error-code scheme so every transport maps them uniformly; errors.Is still
// sees the original sentinel through the cause chain.
func foldRseError(err error) error {
	switch {
	case errors.Is(err, rse.ErrInvalidParameter):
		return ragerrors.Wrap(ragerrors.ErrCodeRseInvalidParameter, err)
	case errors.Is(err, rse.ErrInconsistentResult):
		return ragerrors.Wrap(ragerrors.ErrCodeRseInconsistentResult, err)
	default:
		return err
	}
}

// SegmentContext concatenates segment texts into the context block handed to
// response synthesis, labeling each segment with its source document.
func SegmentContext(segments []rse.SegmentInfo) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s chunks %d-%d]\n%s", seg.DocID, seg.ChunkStart, seg.ChunkEnd-1, seg.Text)
	}
	return b.String()
}
