package store

import (
	"strings"
	"unicode"
)

// TokenizeText splits natural-language document text into lowercase word
// tokens. Letters and digits form words; everything else is a separator, so
// hyphenated compounds ("cash-flow") and slash-joined pairs ("EBITDA/EBIT")
// yield their parts. Digits are kept so fiscal years and section numbers
// remain searchable. Tokens shorter than 2 runes are dropped.
func TokenizeText(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		tok := strings.ToLower(word.String())
		word.Reset()
		if len([]rune(tok)) >= 2 {
			tokens = append(tokens, tok)
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
