// Package llm holds the narrow LLM capabilities the query pipeline composes:
// turning one question into several search queries, and synthesizing a final
// response over retrieved segment text. The segment-extraction core never
// touches this package.
package llm

import "context"

// QueryGenerator turns a user question into search queries for the retrieval
// layer. Guidance describes the knowledge base's content so generated queries
// target what the documents actually contain.
type QueryGenerator interface {
	GenerateSearchQueries(ctx context.Context, question, guidance string, maxQueries int) ([]string, error)
}

// ResponseSynthesizer answers the user's question from the concatenated text
// of the selected segments.
type ResponseSynthesizer interface {
	SynthesizeResponse(ctx context.Context, question, context string) (string, error)
}

// Client is the full LLM collaborator surface.
type Client interface {
	QueryGenerator
	ResponseSynthesizer
	Close() error
}
