package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ragerrors "github.com/relevant-segments/ragcore/internal/errors"
)

// Default Anthropic client settings.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024

	// DefaultMaxQueries caps auto-generated search queries per question.
	DefaultMaxQueries = 6
)

// queryGenerationSystemMessage instructs the model to emit one search query
// per line, nothing else, so parsing stays trivial.
const queryGenerationSystemMessage = `You are a search query generation system for a knowledge base. Given a user question, generate the search queries needed to gather the information required to answer it.

First consider which separate pieces of information the answer needs, then write one search query per piece. Queries should be short keyword-style phrases likely to appear in the documents, not full sentences.

%s

Respond with ONLY the search queries, one per line, at most %d. No numbering, no commentary.`

// responseSystemMessage mirrors the response generation convention of the
// evaluation harness this pipeline is benchmarked against.
const responseSystemMessage = `You are a response generation system. Please generate a response to the user input based on the provided context. Your response should be as concise as possible while still fully answering the user's question.

CONTEXT
%s`

// AnthropicConfig configures the Anthropic-backed Client.
type AnthropicConfig struct {
	// APIKey authenticates against the Anthropic API. Empty falls back to the
	// SDK's ANTHROPIC_API_KEY environment lookup.
	APIKey string

	// Model is the model name (default claude-sonnet-4-5).
	Model string

	// MaxTokens bounds each response (default 1024).
	MaxTokens int
}

// AnthropicClient implements Client on the official Anthropic SDK. Outbound
// calls run through a shared circuit breaker with bounded retry, so a dead or
// rate-limited API fails fast instead of stalling every question.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	breaker   *ragerrors.CircuitBreaker
	retryCfg  ragerrors.RetryConfig
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient creates an Anthropic-backed LLM client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	retryCfg := ragerrors.DefaultRetryConfig()
	retryCfg.MaxRetries = 2
	retryCfg.InitialDelay = 500 * time.Millisecond
	retryCfg.Jitter = true

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		breaker:   ragerrors.NewCircuitBreaker("anthropic"),
		retryCfg:  retryCfg,
	}
}

// call sends one message request through the circuit breaker and retry
// wrapper shared with the other outbound collaborators.
func (c *AnthropicClient) call(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return ragerrors.CircuitExecuteWithResult(c.breaker,
		func() (*anthropic.Message, error) {
			return ragerrors.RetryWithResult(ctx, c.retryCfg, func() (*anthropic.Message, error) {
				return c.client.Messages.New(ctx, params)
			})
		},
		func() (*anthropic.Message, error) {
			return nil, fmt.Errorf("anthropic: %w", ragerrors.ErrCircuitOpen)
		})
}

// GenerateSearchQueries asks the model for up to maxQueries search queries
// answering the question, one per line.
func (c *AnthropicClient) GenerateSearchQueries(ctx context.Context, question, guidance string, maxQueries int) ([]string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	if maxQueries <= 0 {
		maxQueries = DefaultMaxQueries
	}

	system := fmt.Sprintf(queryGenerationSystemMessage, strings.TrimSpace(guidance), maxQueries)

	msg, err := c.call(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generate search queries: %w", err)
	}

	queries := ParseQueryLines(messageText(msg), maxQueries)
	if len(queries) == 0 {
		// A model that returned prose instead of queries still leaves the
		// caller something to search with.
		queries = []string{question}
	}
	return queries, nil
}

// SynthesizeResponse answers the question from the segment context.
func (c *AnthropicClient) SynthesizeResponse(ctx context.Context, question, context_ string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question must not be empty")
	}

	system := fmt.Sprintf(responseSystemMessage, context_)

	msg, err := c.call(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize response: %w", err)
	}

	return strings.TrimSpace(messageText(msg)), nil
}

// Close releases resources. The SDK client has nothing to release.
func (c *AnthropicClient) Close() error { return nil }

// messageText concatenates the text blocks of a response.
func messageText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// ParseQueryLines extracts up to max non-empty query lines from model output,
// stripping list markers the model may add despite instructions.
func ParseQueryLines(text string, max int) []string {
	var queries []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-* ")
		if i := strings.IndexAny(line, ".)"); i > 0 && strings.Trim(line[:i], "0123456789") == "" &&
			(i+1 == len(line) || line[i+1] == ' ') {
			line = strings.TrimSpace(line[i+1:])
		}
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) >= max {
			break
		}
	}
	return queries
}
