package rse

import "sort"

// SelectSegments runs the deterministic greedy round-robin optimizer and
// returns the accepted segments in selection order.
//
// Queries are visited in round-robin order; each turn, the query's single
// best remaining candidate segment is either accepted or the query is
// dropped from rotation (its relevance vector has no more acceptable
// segment). The loop stops once the budget is exhausted or every query has
// been dropped.
func SelectSegments(vectors []RelevanceVector, documentSplits []int, maxLength, effectiveOverallMaxLength int, minimumValue float64) []Segment {
	numQueries := len(vectors)
	if numQueries == 0 {
		return nil
	}

	prefixSums := make([]prefixSum, numQueries)
	for i, v := range vectors {
		prefixSums[i] = newPrefixSum(v)
	}

	var chosen []Segment
	exhausted := make(map[int]struct{}, numQueries)
	totalLength := 0
	cursor := 0

	for totalLength < effectiveOverallMaxLength && len(exhausted) < numQueries {
		if _, done := exhausted[cursor]; done {
			cursor = (cursor + 1) % numQueries
			continue
		}

		candidate, found := bestCandidate(vectors[cursor], prefixSums[cursor], documentSplits, chosen, maxLength, effectiveOverallMaxLength-totalLength)
		if !found || candidate.Score < minimumValue {
			exhausted[cursor] = struct{}{}
			cursor = (cursor + 1) % numQueries
			continue
		}

		chosen = append(chosen, candidate)
		totalLength += candidate.Len()
		cursor = (cursor + 1) % numQueries
	}

	return chosen
}

// bestCandidate finds the best-scoring valid segment for one query's
// relevance vector. Higher score wins; ties break to the smaller start, then
// to the shorter segment, so identical inputs always produce identical
// output.
func bestCandidate(values RelevanceVector, prefix prefixSum, documentSplits []int, chosen []Segment, maxLength, remainingBudget int) (Segment, bool) {
	n := len(values)
	var best Segment
	found := false

	for start := 0; start < n; start++ {
		if values[start] < 0 {
			continue
		}
		maxEnd := start + maxLength
		if maxEnd > n {
			maxEnd = n
		}
		for end := start + 1; end <= maxEnd; end++ {
			if values[end-1] < 0 {
				continue
			}
			length := end - start
			if length > remainingBudget {
				continue
			}
			if overlapsAny(start, end, chosen) {
				continue
			}
			if straddlesSplit(start, end, documentSplits) {
				continue
			}

			score := prefix.sum(start, end)
			candidate := Segment{Start: start, End: end, Score: score}
			if !found || betterCandidate(candidate, best) {
				best = candidate
				found = true
			}
		}
	}

	return best, found
}

// betterCandidate reports whether a should replace b as the best candidate
// found so far.
func betterCandidate(a, b Segment) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.Len() < b.Len()
}

func overlapsAny(start, end int, chosen []Segment) bool {
	for _, c := range chosen {
		if start < c.End && end > c.Start {
			return true
		}
	}
	return false
}

func straddlesSplit(start, end int, documentSplits []int) bool {
	// documentSplits is sorted ascending; binary search for the first split
	// strictly inside (start, end).
	idx := sort.SearchInts(documentSplits, start+1)
	return idx < len(documentSplits) && documentSplits[idx] < end
}

// prefixSum supports O(1) window-sum queries over a relevance vector.
type prefixSum []float64

func newPrefixSum(values RelevanceVector) prefixSum {
	p := make(prefixSum, len(values)+1)
	for i, v := range values {
		p[i+1] = p[i] + v
	}
	return p
}

// sum returns the sum of values[start:end].
func (p prefixSum) sum(start, end int) float64 {
	return p[end] - p[start]
}
