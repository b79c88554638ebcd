package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolAsk    = "ask_portfolio"
	ToolSearch = "search_portfolio"
)

// search_portfolio result limits.
const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

type askInput struct {
	Question string `json:"question" jsonschema:"Question about the portfolio owner's experience, skills or projects"`
}

type askOutput struct {
	Answer  string   `json:"answer" jsonschema:"Answer grounded in the portfolio documents"`
	Sources []string `json:"sources" jsonschema:"Documents the answer was drawn from"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Text to search the portfolio documents for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum chunks to return (default 5, max 20)"`
}

type searchHit struct {
	Content string  `json:"content" jsonschema:"Chunk text"`
	Source  string  `json:"source" jsonschema:"Document the chunk came from"`
	Score   float32 `json:"score" jsonschema:"Cosine similarity to the query"`
}

type searchOutput struct {
	Query   string      `json:"query" jsonschema:"Search query used"`
	Results []searchHit `json:"results" jsonschema:"Matching chunks, most similar first"`
	Count   int         `json:"count" jsonschema:"Number of chunks returned"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question about the portfolio owner using only the indexed portfolio documents. Returns the answer and its source documents.",
	}, s.askPortfolio)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Search the indexed portfolio documents and return the most similar chunks with their source and score. No answer is generated.",
	}, s.searchPortfolio)
}

func (s *Server) askPortfolio(ctx context.Context, _ *mcp.CallToolRequest, args askInput) (_ *mcp.CallToolResult, _ askOutput, toolErr error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordInvocation(ctx, ToolAsk, time.Since(start), toolErr)
	}()

	answer, err := s.service.Ask(ctx, args.Question)
	if err != nil {
		return nil, askOutput{}, fmt.Errorf("ask failed: %w", err)
	}

	text := answer.Answer
	if len(answer.Sources) > 0 {
		text += "\n\nSources: " + strings.Join(answer.Sources, ", ")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, askOutput{Answer: answer.Answer, Sources: answer.Sources}, nil
}

func (s *Server) searchPortfolio(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (_ *mcp.CallToolResult, _ searchOutput, toolErr error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordInvocation(ctx, ToolSearch, time.Since(start), toolErr)
	}()

	limit := args.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.service.Search(ctx, args.Query, limit)
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("search failed: %w", err)
	}

	out := searchOutput{Query: args.Query, Results: make([]searchHit, 0, len(results))}
	for _, r := range results {
		src := r.Source()
		if src == "" {
			src = "Unknown"
		}
		out.Results = append(out.Results, searchHit{Content: r.Content, Source: src, Score: r.Score})
	}
	out.Count = len(out.Results)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Found %d chunk(s) for query '%s'", out.Count, args.Query)},
		},
	}, out, nil
}
