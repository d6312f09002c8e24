package rse

import "math"

// missingRank and missingSimilarity are the defaults used for a meta-document
// position that has no result from a given query.
const (
	missingRank       = 1000
	missingSimilarity = 0.0
)

// chunkValue returns the relevance value of a single chunk under one query,
// given its rank and similarity:
//
//	v = exp(-rank/decayRate) * similarity - irrelevantChunkPenalty
//
// v is monotonically non-increasing in rank (holding similarity fixed) and
// linear in similarity.
func chunkValue(rank int, similarity, irrelevantChunkPenalty float64, decayRate int) float64 {
	return math.Exp(-float64(rank)/float64(decayRate))*similarity - irrelevantChunkPenalty
}

// ComputeRelevanceValues converts each query's ranked result list into a
// dense RelevanceVector over the meta-document.
//
// Only results whose DocID is present in layout are considered; others are
// ignored, since (A) is responsible for deciding which documents are part of
// the meta-document. A meta-document position with no contributing result
// uses the missing-chunk defaults (rank=1000, similarity=0), which collapses
// to a value of -irrelevantChunkPenalty.
func ComputeRelevanceValues(allResults []RankedResultList, layout MetaDocumentLayout, irrelevantChunkPenalty float64, decayRate int) []RelevanceVector {
	metaLength := layout.Length()
	vectors := make([]RelevanceVector, len(allResults))

	for qi, list := range allResults {
		vec := make(RelevanceVector, metaLength)
		missingValue := chunkValue(missingRank, missingSimilarity, irrelevantChunkPenalty, decayRate)
		for i := range vec {
			vec[i] = missingValue
		}

		for rank, r := range list {
			start, ok := layout.DocumentStartPoints[r.DocID]
			if !ok {
				continue
			}
			pos := start + r.ChunkIndex
			if pos < 0 || pos >= metaLength {
				continue
			}
			vec[pos] = chunkValue(rank, r.Similarity, irrelevantChunkPenalty, decayRate)
		}

		vectors[qi] = vec
	}

	return vectors
}
