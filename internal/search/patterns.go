package search

import (
	"context"
	"regexp"
	"strings"
)

// Compiled regex patterns for query classification.
// Compiled at package init for performance.
var (
	// Quoted exact phrases: "..." or '...'
	quotedQueryPattern = regexp.MustCompile(`^["'].*["']$`)

	// Document references: "item 7a", "note 12", "section 3.2", "exhibit 99.1"
	sectionRefPattern = regexp.MustCompile(`(?i)^(item|note|section|exhibit|schedule|part)\s+\d+(\.\d+)?[a-z]?$`)

	// Fiscal periods and figures: "FY2023", "Q3 2022", "10-K", "8-K"
	fiscalPattern = regexp.MustCompile(`(?i)^(fy\s?\d{2,4}|q[1-4]\s?\d{4}|\d{1,2}-[kq])$`)

	// All-caps identifiers: tickers, defined terms ("EBITDA", "ARPU", "GAAP")
	capsTermPattern = regexp.MustCompile(`^[A-Z]{2,6}\d?$`)

	// Natural language starters (questions, commands)
	naturalLanguagePattern = regexp.MustCompile(`(?i)^(how|what|where|why|when|which|can|does|is|are|should|explain|describe|show|find|list|summarize)\s`)
)

// PatternClassifier classifies queries using regex pattern matching.
// This is the fallback classifier when the LLM is unavailable.
type PatternClassifier struct{}

// NewPatternClassifier creates a new pattern-based classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// Classify determines the query type using pattern matching.
// Returns (QueryType, Weights, nil) - never returns an error.
func (p *PatternClassifier) Classify(_ context.Context, query string) (QueryType, Weights, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), nil
	}

	qt := p.classifyQuery(query)
	return qt, WeightsForQueryType(qt), nil
}

// classifyQuery determines the query type based on patterns.
func (p *PatternClassifier) classifyQuery(query string) QueryType {
	// Check lexical patterns first (most specific)
	if p.isLexicalQuery(query) {
		return QueryTypeLexical
	}

	// Check natural language patterns
	if p.isSemanticQuery(query) {
		return QueryTypeSemantic
	}

	// Multi-word queries (3+) that don't match other patterns → SEMANTIC
	wordCount := len(strings.Fields(query))
	if wordCount >= 3 {
		return QueryTypeSemantic
	}

	// Default to MIXED for 1-2 word queries
	return QueryTypeMixed
}

// isLexicalQuery checks if the query matches lexical patterns.
func (p *PatternClassifier) isLexicalQuery(query string) bool {
	// Quoted phrases
	if quotedQueryPattern.MatchString(query) {
		return true
	}

	// Section and exhibit references
	if sectionRefPattern.MatchString(query) {
		return true
	}

	// Fiscal periods and filing types
	if fiscalPattern.MatchString(query) {
		return true
	}

	// All-caps defined terms and tickers (single word only)
	if !strings.Contains(query, " ") && capsTermPattern.MatchString(query) {
		return true
	}

	return false
}

// isSemanticQuery checks if the query matches semantic (natural language) patterns.
func (p *PatternClassifier) isSemanticQuery(query string) bool {
	return naturalLanguagePattern.MatchString(query)
}

// Ensure PatternClassifier implements Classifier interface.
var _ Classifier = (*PatternClassifier)(nil)
