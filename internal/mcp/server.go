// Package mcp implements the Model Context Protocol server for ragcore.
// It exposes the knowledge-base query pipeline and the underlying hybrid
// search to MCP clients over stdio.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relevant-segments/ragcore/internal/config"
	"github.com/relevant-segments/ragcore/internal/embed"
	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/search"
	"github.com/relevant-segments/ragcore/internal/store"
	"github.com/relevant-segments/ragcore/internal/telemetry"
	"github.com/relevant-segments/ragcore/pkg/version"
)

// serverName identifies this server to MCP clients.
const serverName = "ragcore"

// Server is the MCP server bridging AI clients with the knowledge base.
type Server struct {
	mcp      *mcp.Server
	kb       *kb.KnowledgeBase
	engine   search.SearchEngine
	metadata store.MetadataStore
	embedder embed.Embedder // Embedder for capability signaling
	config   *config.Config
	logger   *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server. knowledgeBase, engine, and metadata are
// required; embedder may be nil and is then reported as unavailable.
func NewServer(knowledgeBase *kb.KnowledgeBase, engine search.SearchEngine, metadata store.MetadataStore, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if knowledgeBase == nil {
		return nil, errors.New("knowledge base is required")
	}
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if metadata == nil {
		return nil, errors.New("metadata store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		kb:       knowledgeBase,
		engine:   engine,
		metadata: metadata,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector for telemetry.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "query_knowledge_base",
			Description: toolDescQueryKB,
		},
		{
			Name:        "extract_segments",
			Description: toolDescExtractSegments,
		},
		{
			Name:        "search",
			Description: toolDescSearch,
		},
		{
			Name:        "index_status",
			Description: toolDescIndexStatus,
		},
	}
}

// Tool descriptions, shared between ListTools and registration.
const (
	toolDescQueryKB = "Answer a question from the knowledge base. Generates search queries, retrieves and extracts the most relevant contiguous document segments, and synthesizes a concise answer when an LLM is configured. Use this for questions; use 'search' for raw chunk lookup."

	toolDescExtractSegments = "Run relevant segment extraction over explicit search queries. Returns non-overlapping contiguous document segments that jointly best cover the queries, with their text. Use when you already know what to search for."

	toolDescSearch = "Hybrid keyword+semantic search over individual document chunks. Returns ranked chunks, not segments. Use for pinpoint lookups; prefer 'query_knowledge_base' for questions."

	toolDescIndexStatus = "Check which documents are indexed and which embedder is active. Use before querying to verify the knowledge base is ready."
)

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "query_knowledge_base":
		return s.handleQueryKBTool(ctx, args)
	case "extract_segments":
		return s.handleExtractSegmentsTool(ctx, args)
	case "search":
		return s.handleSearchTool(ctx, args)
	case "index_status":
		return s.handleIndexStatusTool(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleQueryKBTool handles query_knowledge_base with untyped arguments.
// Returns markdown-formatted segments plus the synthesized answer.
func (s *Server) handleQueryKBTool(ctx context.Context, args map[string]any) (string, error) {
	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return "", NewInvalidParamsError("question parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("query_knowledge_base started",
		slog.String("request_id", requestID),
		slog.String("question", question))

	result, err := s.kb.Ask(ctx, question)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("query_knowledge_base failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("query_knowledge_base completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("segments", len(result.Segments)))

	return FormatQueryResult(question, result), nil
}

// handleExtractSegmentsTool handles extract_segments with untyped arguments.
func (s *Server) handleExtractSegmentsTool(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["queries"].([]any)
	if !ok || len(raw) == 0 {
		return "", NewInvalidParamsError("queries parameter is required and must be a non-empty array of strings")
	}
	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		if str, ok := q.(string); ok && strings.TrimSpace(str) != "" {
			queries = append(queries, str)
		}
	}
	if len(queries) == 0 {
		return "", NewInvalidParamsError("queries must contain at least one non-empty string")
	}

	result, err := s.kb.Query(ctx, queries)
	if err != nil {
		return "", MapError(err)
	}

	return FormatSegments(queries, result.Segments), nil
}

// handleSearchTool handles the raw chunk search tool with untyped arguments.
// Returns markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := clampLimit(0, 10, 1, 50) // default 10
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), 10, 1, 50)
	}

	opts := search.SearchOptions{Limit: limit}
	if docs, ok := args["doc_ids"].([]any); ok {
		for _, d := range docs {
			if str, ok := d.(string); ok {
				opts.DocIDs = append(opts.DocIDs, str)
			}
		}
	}

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	results, err := s.engine.Search(ctx, query, opts)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return FormatSearchResults(query, results), nil
}

// handleIndexStatusTool reports index statistics and embedder capability.
// AI clients can use the embedder state to adjust their search strategies
// (static fallback embeddings make semantic search much weaker).
func (s *Server) handleIndexStatusTool(ctx context.Context) (*IndexStatusOutput, error) {
	stats := s.engine.Stats()

	var actualProvider, actualModel, semanticQuality, status string
	var dimensions int
	var isFallbackActive bool

	if s.embedder != nil {
		actualModel = s.embedder.ModelName()
		dimensions = s.embedder.Dimensions()

		isFallbackActive = actualModel == "static" || dimensions == embed.StaticDimensions
		if isFallbackActive {
			actualProvider = "static"
			semanticQuality = "low"
		} else {
			actualProvider = "ollama"
			semanticQuality = "high"
		}

		if s.embedder.Available(ctx) {
			status = "ready"
		} else {
			status = "unavailable"
		}
	} else {
		actualProvider = "none"
		actualModel = "none"
		isFallbackActive = true
		semanticQuality = "none"
		status = "unavailable"
	}

	info, err := DetectKnowledgeBase(ctx, s.metadata)
	if err != nil {
		s.logger.Warn("knowledge base detection failed", slog.String("error", err.Error()))
		info = &KnowledgeBaseInfo{}
	}

	output := &IndexStatusOutput{
		KnowledgeBase: *info,
		Embeddings: EmbeddingInfo{
			Provider:         s.config.Embeddings.Provider,
			Model:            s.config.Embeddings.Model,
			Status:           status,
			ActualProvider:   actualProvider,
			ActualModel:      actualModel,
			Dimensions:       dimensions,
			IsFallbackActive: isFallbackActive,
			SemanticQuality:  semanticQuality,
		},
	}

	if stats != nil {
		output.Stats.VectorCount = stats.VectorCount
		if stats.BM25Stats != nil {
			output.Stats.IndexedChunks = stats.BM25Stats.DocumentCount
		}
	}

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_knowledge_base",
		Description: toolDescQueryKB,
	}, s.mcpQueryKBHandler)
	s.logger.Debug("Registered tool", slog.String("name", "query_knowledge_base"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_segments",
		Description: toolDescExtractSegments,
	}, s.mcpExtractSegmentsHandler)
	s.logger.Debug("Registered tool", slog.String("name", "extract_segments"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: toolDescSearch,
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: toolDescIndexStatus,
	}, s.mcpIndexStatusHandler)
	s.logger.Debug("Registered tool", slog.String("name", "index_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 4))
}

// mcpQueryKBHandler is the MCP SDK handler for the query_knowledge_base tool.
func (s *Server) mcpQueryKBHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryKBInput) (
	*mcp.CallToolResult,
	QueryKBOutput,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, QueryKBOutput{}, NewInvalidParamsError("question parameter is required")
	}

	result, err := s.kb.Ask(ctx, input.Question)
	if err != nil {
		return nil, QueryKBOutput{}, MapError(err)
	}

	return nil, ToQueryKBOutput(result), nil
}

// mcpExtractSegmentsHandler is the MCP SDK handler for the extract_segments tool.
func (s *Server) mcpExtractSegmentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input ExtractSegmentsInput) (
	*mcp.CallToolResult,
	QueryKBOutput,
	error,
) {
	if len(input.Queries) == 0 {
		return nil, QueryKBOutput{}, NewInvalidParamsError("queries parameter is required")
	}

	result, err := s.kb.Query(ctx, input.Queries)
	if err != nil {
		return nil, QueryKBOutput{}, MapError(err)
	}

	return nil, ToQueryKBOutput(result), nil
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.SearchOptions{
		Limit:  10,
		DocIDs: input.DocIDs,
	}
	if input.Limit > 0 {
		opts.Limit = input.Limit
	}

	results, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		if r.Chunk != nil {
			output.Results = append(output.Results, ToSearchResultOutput(r))
		}
	}

	return nil, output, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	output, err := s.handleIndexStatusTool(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// ReadResource reads a resource by URI. Supported schemes:
//   - doc://<doc_id>          full document text
//   - chunk://<chunk_id>      single chunk text
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case strings.HasPrefix(uri, "doc://"):
		docID := strings.TrimPrefix(uri, "doc://")
		content, err := s.documentText(ctx, docID)
		if err != nil {
			return nil, NewResourceNotFoundError(uri)
		}
		return &ResourceContent{
			URI:      uri,
			Content:  content,
			MIMEType: MimeTypeForDocID(docID),
		}, nil

	case strings.HasPrefix(uri, "chunk://"):
		chunkID := strings.TrimPrefix(uri, "chunk://")
		chunk, err := s.metadata.GetChunk(ctx, chunkID)
		if err != nil || chunk == nil {
			return nil, NewResourceNotFoundError(uri)
		}
		return &ResourceContent{
			URI:      uri,
			Content:  chunk.Text,
			MIMEType: MimeTypeForDocID(chunk.DocID),
		}, nil

	default:
		return nil, NewResourceNotFoundError(uri)
	}
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		s.logger.Debug("Using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server doesn't have a Close method - it stops when context is canceled
	return nil
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
