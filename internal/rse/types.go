// Package rse implements Relevant Segment Extraction: given several ranked
// retrieval result lists over a shared corpus of chunked documents, it selects a
// small set of non-overlapping contiguous segments that jointly maximize
// aggregate relevance subject to length and quality constraints.
//
// The package is a pure, synchronous computation. It has no I/O, no concurrency,
// and no persistent state; the same inputs always produce the same outputs.
package rse

import "fmt"

// RankedResult is a single retrieval hit.
type RankedResult struct {
	// DocID identifies the source document.
	DocID string

	// ChunkIndex is the 0-based position of this chunk within its document.
	ChunkIndex int

	// Similarity is the retrieval layer's scalar quality score, higher is better,
	// conventionally in [0,1] (cosine-like).
	Similarity float64
}

// RankedResultList is one query's ordered results, sorted by descending
// similarity. Its position in the slice is the result's rank (0-based).
type RankedResultList []RankedResult

// MetaDocumentLayout is the virtual concatenation of the unique documents
// selected for a query batch, used as a 1-D coordinate space by the optimizer.
type MetaDocumentLayout struct {
	// UniqueDocIDs is the deterministic, first-seen order of documents included
	// in the meta-document.
	UniqueDocIDs []string

	// DocumentStartPoints maps a doc ID to the meta-document offset of that
	// document's chunk 0.
	DocumentStartPoints map[string]int

	// DocumentSplits holds, in the same order as UniqueDocIDs, the
	// non-inclusive end offset of each document in the meta-document.
	DocumentSplits []int
}

// Length returns the length of the meta-document, i.e. the last split point.
// It is 0 for an empty layout.
func (l MetaDocumentLayout) Length() int {
	if len(l.DocumentSplits) == 0 {
		return 0
	}
	return l.DocumentSplits[len(l.DocumentSplits)-1]
}

// RelevanceVector is a dense per-chunk relevance score for one query over the
// whole meta-document.
type RelevanceVector []float64

// Segment is a half-open interval [Start, End) into the meta-document,
// together with the score it earned under the query that selected it.
type Segment struct {
	Start int
	End   int
	Score float64
}

// Len reports the segment's length in chunks.
func (s Segment) Len() int { return s.End - s.Start }

// SegmentInfo is a segment translated back into document-local coordinates,
// the shape returned by ExtractSegments.
type SegmentInfo struct {
	// DocID is the document the segment belongs to.
	DocID string

	// ChunkStart and ChunkEnd are document-local, half-open chunk bounds.
	ChunkStart int
	ChunkEnd   int

	// Score is the segment's summed relevance value under the query that
	// selected it.
	Score float64

	// Text is populated by an external collaborator (internal/kb) via
	// fetch_segment_text; ExtractSegments itself never sets it.
	Text string
}

// RseParams are the tunable parameters for extraction.
type RseParams struct {
	// MaxLength caps the number of chunks in any single segment.
	MaxLength int

	// OverallMaxLength is the base total-chunk budget across all returned
	// segments, before the per-extra-query extension is applied.
	OverallMaxLength int

	// OverallMaxLengthExtension is added to the budget once per query beyond
	// the first.
	OverallMaxLengthExtension int

	// MinimumValue is the minimum acceptable segment score; a candidate
	// segment whose score is strictly less than this is rejected. A segment
	// scoring exactly MinimumValue is accepted.
	MinimumValue float64

	// IrrelevantChunkPenalty is subtracted from every chunk's value,
	// tuning segment length (higher penalty -> shorter segments). Must be
	// in [0,1].
	IrrelevantChunkPenalty float64

	// DecayRate is the rank-decay time constant: value = exp(-rank/DecayRate)*similarity - penalty.
	DecayRate int

	// TopKForDocumentSelection is how many top results per query are
	// considered when choosing which documents enter the meta-document.
	TopKForDocumentSelection int
}

// DefaultRseParams returns the default extraction parameters.
func DefaultRseParams() RseParams {
	return RseParams{
		MaxLength:                 12,
		OverallMaxLength:          30,
		OverallMaxLengthExtension: 6,
		MinimumValue:              0.7,
		IrrelevantChunkPenalty:    0.18,
		DecayRate:                 20,
		TopKForDocumentSelection:  7,
	}
}

// FinanceBenchRseParams returns the parameter profile used for FinanceBench
// evaluation runs: shorter segments and a higher acceptance floor than the
// defaults.
func FinanceBenchRseParams() RseParams {
	p := DefaultRseParams()
	p.MaxLength = 10
	p.OverallMaxLength = 20
	p.OverallMaxLengthExtension = 5
	p.IrrelevantChunkPenalty = 0.18
	p.MinimumValue = 0.8
	return p
}

// Validate rejects any parameter outside its declared domain.
func (p RseParams) Validate() error {
	if p.MaxLength <= 0 {
		return fmt.Errorf("%w: max_length must be > 0, got %d", ErrInvalidParameter, p.MaxLength)
	}
	if p.OverallMaxLength <= 0 {
		return fmt.Errorf("%w: overall_max_length must be > 0, got %d", ErrInvalidParameter, p.OverallMaxLength)
	}
	if p.OverallMaxLengthExtension < 0 {
		return fmt.Errorf("%w: overall_max_length_extension must be >= 0, got %d", ErrInvalidParameter, p.OverallMaxLengthExtension)
	}
	if p.IrrelevantChunkPenalty < 0 || p.IrrelevantChunkPenalty > 1 {
		return fmt.Errorf("%w: irrelevant_chunk_penalty must be in [0,1], got %v", ErrInvalidParameter, p.IrrelevantChunkPenalty)
	}
	if p.DecayRate <= 0 {
		return fmt.Errorf("%w: decay_rate must be > 0, got %d", ErrInvalidParameter, p.DecayRate)
	}
	if p.TopKForDocumentSelection <= 0 {
		return fmt.Errorf("%w: top_k_for_document_selection must be > 0, got %d", ErrInvalidParameter, p.TopKForDocumentSelection)
	}
	return nil
}

// EffectiveOverallMaxLength extends the base chunk budget once per query
// beyond the first, so multi-query batches get proportionally more room.
func (p RseParams) EffectiveOverallMaxLength(numQueries int) int {
	if numQueries <= 1 {
		return p.OverallMaxLength
	}
	return p.OverallMaxLength + (numQueries-1)*p.OverallMaxLengthExtension
}
