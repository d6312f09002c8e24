package search

import (
	"regexp"
	"strings"
)

// SubQuery represents a decomposed sub-query with its relative weight.
type SubQuery struct {
	// Query is the sub-query text to search.
	Query string

	// Weight is the relative importance of this sub-query (default: 1.0).
	// Higher weights give more influence in RRF fusion.
	Weight float64
}

// QueryDecomposer transforms a single question into multiple sub-queries for
// improved coverage via multi-signal fusion.
//
// Compound questions ("compare X and Y", "X versus Y") retrieve poorly as a
// single query because each aspect's best chunks sit in different parts of
// the corpus. Decomposing into per-aspect sub-queries lets each aspect pull
// its own chunks, and consensus fusion keeps the shared ones on top.
type QueryDecomposer interface {
	// ShouldDecompose returns true if the query benefits from decomposition.
	// Conservative: only returns true for patterns known to retrieve poorly.
	ShouldDecompose(query string) bool

	// Decompose returns sub-queries for the given query.
	// If ShouldDecompose returns false, returns the original query wrapped in
	// a slice.
	Decompose(query string) []SubQuery
}

// PatternDecomposer implements QueryDecomposer using regex pattern matching.
// This is the deterministic fallback when no LLM is configured for query
// generation; it is fast (<1ms) and has no external dependencies.
type PatternDecomposer struct {
	comparePattern *regexp.Regexp
	versusPattern  *regexp.Regexp
	bothPattern    *regexp.Regexp
	quotedPattern  *regexp.Regexp
}

// NewPatternDecomposer creates a new pattern-based query decomposer.
func NewPatternDecomposer() *PatternDecomposer {
	return &PatternDecomposer{
		// Matches: "compare revenue and margins", "compare A with B",
		// "difference between A and B"
		comparePattern: regexp.MustCompile(`(?i)^(?:compare|difference between)\s+(.+?)\s+(?:and|with|to)\s+(.+?)\??$`),

		// Matches: "A vs B", "A versus B"
		versusPattern: regexp.MustCompile(`(?i)^(.+?)\s+(?:vs\.?|versus)\s+(.+?)\??$`),

		// Matches: "what were revenue and operating income ..." - a question
		// carrying two coordinated aspects
		bothPattern: regexp.MustCompile(`(?i)^(?:what|how)\s+(?:was|were|did|about)\s+(?:the\s+)?(.+?)\s+and\s+(?:the\s+)?(.+?)\??$`),

		// Quoted phrases must pass through untouched
		quotedPattern: regexp.MustCompile(`^["'].*["']$`),
	}
}

// ShouldDecompose returns true if the query matches a compound-question
// pattern that benefits from multi-query decomposition.
func (d *PatternDecomposer) ShouldDecompose(query string) bool {
	query = strings.TrimSpace(query)
	if len(query) == 0 {
		return false
	}

	// Single words and quoted phrases pass through untouched
	if len(strings.Fields(query)) <= 1 {
		return false
	}
	if d.quotedPattern.MatchString(query) {
		return false
	}

	return d.comparePattern.MatchString(query) ||
		d.versusPattern.MatchString(query) ||
		d.bothPattern.MatchString(query)
}

// Decompose transforms a query into multiple sub-queries.
// Returns the original query wrapped in a slice if decomposition doesn't apply.
func (d *PatternDecomposer) Decompose(query string) []SubQuery {
	query = strings.TrimSpace(query)

	if !d.ShouldDecompose(query) {
		return []SubQuery{{Query: query, Weight: 1.0}}
	}

	for _, pattern := range []*regexp.Regexp{d.comparePattern, d.versusPattern, d.bothPattern} {
		if matches := pattern.FindStringSubmatch(query); len(matches) >= 3 {
			return d.decomposeAspects(query, matches[1], matches[2])
		}
	}

	return []SubQuery{{Query: query, Weight: 1.0}}
}

// decomposeAspects builds sub-queries for a two-aspect compound question:
// one per aspect (highest weight, they carry the distinct information needs),
// plus the original question at reduced weight so chunks covering both
// aspects at once still surface.
func (d *PatternDecomposer) decomposeAspects(original, first, second string) []SubQuery {
	first = strings.TrimSpace(first)
	second = strings.TrimSpace(second)

	subQueries := make([]SubQuery, 0, 3)
	if significantWords(first) > 0 {
		subQueries = append(subQueries, SubQuery{Query: first, Weight: 1.2})
	}
	if significantWords(second) > 0 {
		subQueries = append(subQueries, SubQuery{Query: second, Weight: 1.2})
	}

	if len(subQueries) < 2 {
		return []SubQuery{{Query: original, Weight: 1.0}}
	}

	subQueries = append(subQueries, SubQuery{Query: original, Weight: 0.8})
	return subQueries
}

// significantWords counts non-stop-word tokens in a phrase.
func significantWords(phrase string) int {
	count := 0
	for _, w := range strings.Fields(phrase) {
		if !isStopWord(strings.ToLower(w)) {
			count++
		}
	}
	return count
}

// isStopWord returns true for common stop words that don't add search value.
func isStopWord(word string) bool {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "is": true, "are": true,
		"was": true, "were": true, "be": true, "been": true, "being": true,
		"have": true, "has": true, "had": true, "do": true, "does": true,
		"did": true, "will": true, "would": true, "could": true, "should": true,
		"may": true, "might": true, "must": true, "shall": true,
		"and": true, "but": true, "or": true, "nor": true, "for": true,
		"yet": true, "so": true, "to": true, "of": true, "in": true,
		"on": true, "at": true, "by": true, "with": true, "from": true,
		"it": true, "its": true, "this": true, "that": true, "these": true,
		"those": true, "which": true, "what": true, "who": true, "whom": true,
	}
	return stopWords[word]
}

// Ensure PatternDecomposer implements QueryDecomposer interface.
var _ QueryDecomposer = (*PatternDecomposer)(nil)
