package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS-TOK-01: Basic tokenization - split on whitespace
func TestTokenizeText_SplitsOnWhitespace(t *testing.T) {
	// Given: text with whitespace
	text := "hello world"

	// When: tokenizing
	tokens := TokenizeText(text)

	// Then: splits into separate tokens
	require.Len(t, tokens, 2)
	assert.Equal(t, "hello", tokens[0])
	assert.Equal(t, "world", tokens[1])
}

func TestTokenizeText_SplitsOnPunctuation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "comma and period",
			input:  "revenue, margin. guidance",
			expect: []string{"revenue", "margin", "guidance"},
		},
		{
			name:   "hyphenated compound",
			input:  "cash-flow statement",
			expect: []string{"cash", "flow", "statement"},
		},
		{
			name:   "slash-joined pair",
			input:  "EBITDA/EBIT reconciliation",
			expect: []string{"ebitda", "ebit", "reconciliation"},
		},
		{
			name:   "parentheses and quotes",
			input:  `("net income")`,
			expect: []string{"net", "income"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeText(tt.input))
		})
	}
}

func TestTokenizeText_Lowercases(t *testing.T) {
	tokens := TokenizeText("Quarterly EBITDA Guidance")
	assert.Equal(t, []string{"quarterly", "ebitda", "guidance"}, tokens)
}

func TestTokenizeText_KeepsDigits(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "fiscal year",
			input:  "FY2023 results",
			expect: []string{"fy2023", "results"},
		},
		{
			name:   "section number",
			input:  "item 7a disclosures",
			expect: []string{"item", "7a", "disclosures"},
		},
		{
			name:   "pure number",
			input:  "grew 12 percent",
			expect: []string{"grew", "12", "percent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeText(tt.input))
		})
	}
}

func TestTokenizeText_DropsShortTokens(t *testing.T) {
	// Single-rune tokens are dropped; two-rune tokens survive
	tokens := TokenizeText("a an item 7 x4")
	assert.Equal(t, []string{"an", "item", "x4"}, tokens)
}

func TestTokenizeText_Empty(t *testing.T) {
	assert.Empty(t, TokenizeText(""))
	assert.Empty(t, TokenizeText("   \t\n"))
	assert.Empty(t, TokenizeText("...---..."))
}

func TestTokenizeText_Unicode(t *testing.T) {
	tokens := TokenizeText("Umsatzerlöse für 2023")
	assert.Equal(t, []string{"umsatzerlöse", "für", "2023"}, tokens)
}

func TestFilterStopWords(t *testing.T) {
	stopWords := BuildStopWordMap(DefaultStopWords)

	tokens := []string{"the", "revenue", "of", "this", "segment"}
	result := FilterStopWords(tokens, stopWords)

	assert.Equal(t, []string{"revenue", "segment"}, result)
}

func TestFilterStopWords_NoStopWords(t *testing.T) {
	stopWords := BuildStopWordMap(nil)

	tokens := []string{"the", "revenue"}
	result := FilterStopWords(tokens, stopWords)

	assert.Equal(t, tokens, result)
}

func TestBuildStopWordMap_Lowercases(t *testing.T) {
	m := BuildStopWordMap([]string{"The", "AND"})

	_, hasThe := m["the"]
	_, hasAnd := m["and"]
	assert.True(t, hasThe)
	assert.True(t, hasAnd)
}

func TestTokenizeText_EndToEnd(t *testing.T) {
	input := "The company's free cash-flow conversion improved to 92% in FY2023."

	tokens := TokenizeText(input)
	tokens = FilterStopWords(tokens, BuildStopWordMap(DefaultStopWords))

	assert.Equal(t, []string{"company", "free", "cash", "flow", "conversion", "improved", "92", "fy2023"}, tokens)
}
