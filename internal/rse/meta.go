package rse

import "fmt"

// BuildMetaDocument unions the top-K document IDs across all queries and
// assigns each unique document a contiguous chunk-index range in a flat
// coordinate space.
//
// The iteration order of unique doc IDs is fixed as first-seen in a
// left-to-right scan of allResults, so two calls with identical input always
// observe identical document order.
//
// Once a document is selected by a top-K hit, every result for that document
// in every query list contributes to its max chunk index — not just the
// top-K hits — so segments may later extend into lower-ranked but adjacent
// chunks.
//
// Returns ErrEmptyInput if no query list contains any result.
func BuildMetaDocument(allResults []RankedResultList, topK int) (MetaDocumentLayout, error) {
	if topK <= 0 {
		return MetaDocumentLayout{}, fmt.Errorf("%w: top_k_for_document_selection must be > 0, got %d", ErrInvalidParameter, topK)
	}
	for _, list := range allResults {
		for _, r := range list {
			if r.ChunkIndex < 0 {
				return MetaDocumentLayout{}, fmt.Errorf("%w: doc %q has negative chunk_index %d", ErrInconsistentResult, r.DocID, r.ChunkIndex)
			}
		}
	}

	seen := make(map[string]struct{})
	var uniqueDocIDs []string
	for _, list := range allResults {
		n := topK
		if n > len(list) {
			n = len(list)
		}
		for _, r := range list[:n] {
			if _, ok := seen[r.DocID]; ok {
				continue
			}
			seen[r.DocID] = struct{}{}
			uniqueDocIDs = append(uniqueDocIDs, r.DocID)
		}
	}

	if len(uniqueDocIDs) == 0 {
		return MetaDocumentLayout{}, ErrEmptyInput
	}

	maxChunkIndex := make(map[string]int, len(uniqueDocIDs))
	for docID := range seen {
		maxChunkIndex[docID] = -1
	}
	for _, list := range allResults {
		for _, r := range list {
			if _, ok := seen[r.DocID]; !ok {
				continue
			}
			if r.ChunkIndex > maxChunkIndex[r.DocID] {
				maxChunkIndex[r.DocID] = r.ChunkIndex
			}
		}
	}

	layout := MetaDocumentLayout{
		UniqueDocIDs:        uniqueDocIDs,
		DocumentStartPoints: make(map[string]int, len(uniqueDocIDs)),
		DocumentSplits:      make([]int, len(uniqueDocIDs)),
	}

	previousEnd := 0
	for i, docID := range uniqueDocIDs {
		layout.DocumentStartPoints[docID] = previousEnd
		end := previousEnd + maxChunkIndex[docID] + 1
		layout.DocumentSplits[i] = end
		previousEnd = end
	}

	return layout, nil
}
