package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/output"
	"github.com/relevant-segments/ragcore/internal/search"
)

// queryOptions holds shared CLI flags for ask/query/search.
type queryOptions struct {
	format string // "text", "json"
	limit  int
}

func newAskCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge base",
		Long: `Answer a question from the knowledge base.

When an LLM is configured, the question is first expanded into several
search queries and the selected segments are synthesized into a concise
answer. Without an LLM, the question itself is searched and the segments
are printed.`,
		Example: `  ragcore ask "how did gross margin change from 2022 to 2023"
  ragcore ask --format json "what were the FY2023 capital expenditures"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runAsk(cmd.Context(), cmd, question, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <query>...",
		Short: "Extract relevant segments for explicit search queries",
		Long: `Run relevant segment extraction over one or more explicit search
queries, without any LLM involvement. Each argument is one query; the
extractor interleaves them fairly when selecting segments.`,
		Example: `  ragcore query "2019 revenue" "2020 revenue"
  ragcore query --format json "balance sheet" "cash flow statement"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func newSearchCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search individual document chunks",
		Long: `Hybrid keyword+semantic search over individual document chunks.

Returns ranked chunks rather than extracted segments; useful for pinpoint
lookups and for inspecting what the retrieval layer sees.`,
		Example: `  ragcore search "restructuring charges"
  ragcore search -n 5 --format json "item 7a"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runChunkSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts queryOptions) error {
	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	result, err := stack.kb.Ask(ctx, question)
	if err != nil {
		return err
	}

	return printQueryResult(cmd, result, opts.format)
}

func runQuery(ctx context.Context, cmd *cobra.Command, queries []string, opts queryOptions) error {
	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	result, err := stack.kb.Query(ctx, queries)
	if err != nil {
		return err
	}

	return printQueryResult(cmd, result, opts.format)
}

func runChunkSearch(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	results, err := stack.engine.Search(ctx, query, search.SearchOptions{Limit: opts.limit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	if opts.format == "json" {
		return printSearchJSON(cmd, results)
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		if r.Chunk == nil {
			continue
		}
		out.Statusf("", "%d. %s chunk %d (score: %.3f)", i+1, r.Chunk.DocID, r.Chunk.ChunkIndex, r.Score)
		for _, line := range snippetLines(r.Chunk.Text, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

// printQueryResult renders a pipeline result as text or JSON.
func printQueryResult(cmd *cobra.Command, result *kb.QueryResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := output.New(cmd.OutOrStdout())

	if result.Answer != "" {
		out.Status("💬", result.Answer)
		out.Newline()
	}

	if len(result.Segments) == 0 {
		out.Status("", "No relevant segments found")
		return nil
	}

	out.Statusf("📄", "Segments (%d), searched: %s", len(result.Segments), strings.Join(result.Queries, " | "))
	out.Newline()
	for i, seg := range result.Segments {
		out.Statusf("", "%d. %s chunks %d-%d (score: %.2f)", i+1, seg.DocID, seg.ChunkStart, seg.ChunkEnd-1, seg.Score)
		for _, line := range snippetLines(seg.Text, 5) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

// printSearchJSON outputs chunk search results in JSON format.
func printSearchJSON(cmd *cobra.Command, results []*search.SearchResult) error {
	type jsonResult struct {
		DocID      string  `json:"doc_id"`
		ChunkIndex int     `json:"chunk_index"`
		Score      float64 `json:"score"`
		Text       string  `json:"text"`
	}

	var out []jsonResult
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		out = append(out, jsonResult{
			DocID:      r.Chunk.DocID,
			ChunkIndex: r.Chunk.ChunkIndex,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// snippetLines returns the first n non-trailing-empty lines of text.
func snippetLines(text string, n int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
