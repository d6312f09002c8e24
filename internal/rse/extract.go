package rse

import "sort"

// ExtractSegments is the package's single exposed entrypoint:
// given one ranked result list per query and a parameter set, it returns the
// selected segments translated into document-local coordinates, without
// text — fetching segment text is an external collaborator's job.
//
// If no query list contains any result, ExtractSegments returns an empty,
// nil-error result: an empty knowledge-base match is a normal outcome, not a
// failure.
func ExtractSegments(allResults []RankedResultList, params RseParams) ([]SegmentInfo, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	layout, err := BuildMetaDocument(allResults, params.TopKForDocumentSelection)
	if err != nil {
		if err == ErrEmptyInput {
			return nil, nil
		}
		return nil, err
	}

	vectors := ComputeRelevanceValues(allResults, layout, params.IrrelevantChunkPenalty, params.DecayRate)

	effectiveBudget := params.EffectiveOverallMaxLength(len(allResults))
	segments := SelectSegments(vectors, layout.DocumentSplits, params.MaxLength, effectiveBudget, params.MinimumValue)

	return backTranslate(segments, layout), nil
}

// backTranslate maps meta-document segments back to (doc_id, chunk_start,
// chunk_end) using the layout's document splits.
func backTranslate(segments []Segment, layout MetaDocumentLayout) []SegmentInfo {
	infos := make([]SegmentInfo, 0, len(segments))
	for _, seg := range segments {
		// Smallest i such that seg.Start < DocumentSplits[i].
		i := sort.Search(len(layout.DocumentSplits), func(i int) bool {
			return seg.Start < layout.DocumentSplits[i]
		})
		if i >= len(layout.UniqueDocIDs) {
			continue
		}
		docID := layout.UniqueDocIDs[i]
		docStart := layout.DocumentStartPoints[docID]
		infos = append(infos, SegmentInfo{
			DocID:      docID,
			ChunkStart: seg.Start - docStart,
			ChunkEnd:   seg.End - docStart,
			Score:      seg.Score,
		})
	}
	return infos
}
