package mcp

import (
	"context"

	"github.com/relevant-segments/ragcore/internal/store"
)

// KnowledgeBaseInfo summarizes the indexed corpus for status reporting.
type KnowledgeBaseInfo struct {
	DocumentCount int      `json:"document_count"`
	ChunkCount    int      `json:"chunk_count"`
	DocumentIDs   []string `json:"document_ids,omitempty"`
}

// maxReportedDocumentIDs caps how many doc IDs index_status lists inline.
const maxReportedDocumentIDs = 50

// DetectKnowledgeBase summarizes the chunk store's contents.
func DetectKnowledgeBase(ctx context.Context, metadata store.MetadataStore) (*KnowledgeBaseInfo, error) {
	docs, err := metadata.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	info := &KnowledgeBaseInfo{
		DocumentCount: len(docs),
	}
	for _, d := range docs {
		info.ChunkCount += d.ChunkCount
		if len(info.DocumentIDs) < maxReportedDocumentIDs {
			info.DocumentIDs = append(info.DocumentIDs, d.DocID)
		}
	}
	return info, nil
}
