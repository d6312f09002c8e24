package mcp

import (
	"fmt"
	"strings"

	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/rse"
	"github.com/relevant-segments/ragcore/internal/search"
)

// FormatQueryResult formats a full pipeline result as markdown: the answer
// (when present) followed by the supporting segments.
func FormatQueryResult(question string, result *kb.QueryResult) string {
	var sb strings.Builder

	if result.Answer != "" {
		sb.WriteString(fmt.Sprintf("## Answer\n\n%s\n\n", result.Answer))
	}

	if len(result.Segments) == 0 {
		if result.Answer == "" {
			return fmt.Sprintf("No relevant segments found for \"%s\"", question)
		}
		return sb.String()
	}

	sb.WriteString("## Supporting Segments\n\n")
	if len(result.Queries) > 0 {
		sb.WriteString(fmt.Sprintf("Searched: %s\n\n", formatQueryList(result.Queries)))
	}
	for i, seg := range result.Segments {
		formatSegment(&sb, i+1, seg)
	}

	return sb.String()
}

// FormatSegments formats extracted segments as markdown.
func FormatSegments(queries []string, segments []rse.SegmentInfo) string {
	if len(segments) == 0 {
		return fmt.Sprintf("No relevant segments found for %s", formatQueryList(queries))
	}

	var sb strings.Builder
	sb.WriteString("## Relevant Segments\n\n")
	sb.WriteString(fmt.Sprintf("Searched: %s\n\n", formatQueryList(queries)))
	sb.WriteString(fmt.Sprintf("Found %d segment", len(segments)))
	if len(segments) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, seg := range segments {
		formatSegment(&sb, i+1, seg)
	}

	return sb.String()
}

// FormatSearchResults formats chunk-level search results as markdown.
func FormatSearchResults(query string, results []*search.SearchResult) string {
	validResults := filterValidResults(results)

	if len(validResults) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(validResults)))
	if len(validResults) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range validResults {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// filterValidResults removes results with nil chunks.
func filterValidResults(results []*search.SearchResult) []*search.SearchResult {
	valid := make([]*search.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Chunk != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatSegment formats one segment with its source coordinates.
func formatSegment(sb *strings.Builder, num int, seg rse.SegmentInfo) {
	fmt.Fprintf(sb, "### %d. %s chunks %d-%d (score: %.2f)\n\n",
		num,
		seg.DocID,
		seg.ChunkStart,
		seg.ChunkEnd-1,
		seg.Score,
	)
	sb.WriteString(seg.Text)
	sb.WriteString("\n\n---\n\n")
}

// formatResult formats a single chunk result.
func formatResult(sb *strings.Builder, num int, r *search.SearchResult) {
	if r.Chunk == nil {
		return
	}

	fmt.Fprintf(sb, "### %d. %s chunk %d (score: %.2f)\n\n",
		num,
		r.Chunk.DocID,
		r.Chunk.ChunkIndex,
		r.Score,
	)

	if reason := generateMatchReason(r); reason != "" && reason != "matched content" {
		fmt.Fprintf(sb, "**Why:** %s\n\n", reason)
	}

	sb.WriteString(r.Chunk.Text)
	sb.WriteString("\n\n---\n\n")
}

// formatQueryList renders queries as a quoted, comma-separated list.
func formatQueryList(queries []string) string {
	quoted := make([]string, len(queries))
	for i, q := range queries {
		quoted[i] = fmt.Sprintf("%q", q)
	}
	return strings.Join(quoted, ", ")
}

// ToSearchResultOutput converts a search result to the enhanced output
// format, with context-rich metadata explaining WHY the result matched.
func ToSearchResultOutput(r *search.SearchResult) SearchResultOutput {
	if r == nil || r.Chunk == nil {
		return SearchResultOutput{}
	}

	return SearchResultOutput{
		DocID:        r.Chunk.DocID,
		ChunkIndex:   r.Chunk.ChunkIndex,
		Text:         r.Chunk.Text,
		Score:        r.Score,
		MatchedTerms: r.MatchedTerms,
		InBothLists:  r.InBothLists,
		MatchReason:  generateMatchReason(r),
	}
}

// generateMatchReason creates a human-readable explanation of why a result matched.
func generateMatchReason(r *search.SearchResult) string {
	if r == nil || r.Chunk == nil {
		return ""
	}

	var parts []string

	if len(r.MatchedTerms) > 0 {
		terms := r.MatchedTerms
		if len(terms) > 5 {
			terms = terms[:5]
		}
		parts = append(parts, fmt.Sprintf("matched: %s", strings.Join(terms, ", ")))
	}

	if r.InBothLists {
		parts = append(parts, "found in both keyword and semantic search")
	}

	if len(parts) == 0 {
		return "matched content"
	}

	return strings.Join(parts, "; ")
}
