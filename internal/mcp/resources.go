package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relevant-segments/ragcore/internal/store"
)

// MaxResourceSize is the maximum resource content size (1MB). Documents
// larger than this are truncated with a marker.
const MaxResourceSize = 1024 * 1024

// RegisterResources registers each indexed document as an MCP resource.
// Call after the server is created and before serving.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.metadata.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	for _, d := range docs {
		s.registerDocumentResource(d)
	}

	s.logger.Info("registered resources", "count", len(docs))
	return nil
}

// registerDocumentResource registers a single document as an MCP resource.
func (s *Server) registerDocumentResource(d store.DocumentSummary) {
	uri := fmt.Sprintf("doc://%s", d.DocID)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        d.DocID,
			URI:         uri,
			Description: fmt.Sprintf("%s (%d chunks)", d.DocID, d.ChunkCount),
			MIMEType:    MimeTypeForDocID(d.DocID),
		},
		s.makeDocumentHandler(d.DocID),
	)
}

// makeDocumentHandler creates a read handler for one document.
func (s *Server) makeDocumentHandler(docID string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := s.documentText(ctx, docID)
		if err != nil {
			return nil, MapError(err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      req.Params.URI,
					MIMEType: MimeTypeForDocID(docID),
					Text:     content,
				},
			},
		}, nil
	}
}

// documentText assembles a document's full text from its chunks, truncating
// at MaxResourceSize.
func (s *Server) documentText(ctx context.Context, docID string) (string, error) {
	// The half-open upper bound is exclusive; 1<<30 covers any real document.
	chunks, err := s.metadata.GetChunkRange(ctx, docID, 0, 1<<30)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", ErrResourceNotFound
	}

	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n")
		}
		if sb.Len()+len(c.Text) > MaxResourceSize {
			sb.WriteString("\n[truncated]")
			break
		}
		sb.WriteString(c.Text)
	}
	return sb.String(), nil
}

// registerQueryMetricsResource exposes query telemetry as a JSON resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         "metrics://queries",
			Description: "Aggregated query telemetry: latency percentiles, zero-result queries, query type mix.",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			s.mu.RLock()
			m := s.metrics
			s.mu.RUnlock()

			if m == nil {
				return nil, NewResourceNotFoundError(req.Params.URI)
			}

			data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
			if err != nil {
				return nil, MapError(err)
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      req.Params.URI,
						MIMEType: "application/json",
						Text:     string(data),
					},
				},
			}, nil
		},
	)
}
