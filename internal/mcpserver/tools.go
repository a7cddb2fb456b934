package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qdrant-loader/qdrant-loader-go/internal/search"
)

type searchInput struct {
	Query       string   `json:"query" jsonschema:"required,Natural-language search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 5)"`
	SourceTypes []string `json:"source_types,omitempty" jsonschema:"Restrict results to these source types (git, confluence, jira, publicdocs, localfile)"`
}

type searchResultOutput struct {
	Score      float32           `json:"score"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	SourceType string            `json:"source_type"`
	SourceName string            `json:"source_name"`
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type searchOutput struct {
	Results []searchResultOutput `json:"results"`
}

func resultToOutput(r search.Result) searchResultOutput {
	return searchResultOutput{
		Score: r.Score, DocumentID: r.DocumentID, ChunkIndex: r.ChunkIndex,
		Content: r.Content, SourceType: r.SourceType, SourceName: r.SourceName,
		URL: r.URL, Title: r.Title, Metadata: r.Metadata,
	}
}

func summarize(query string, titles []string) string {
	if len(titles) == 0 {
		return fmt.Sprintf("No results for: %s", query)
	}
	return fmt.Sprintf("Found %d result(s) for %q: %s", len(titles), query, strings.Join(titles, ", "))
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over ingested documents. Embeds the query and returns the highest-scoring chunks, optionally restricted to specific source types.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
		if args.Query == "" {
			return nil, searchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 5
		}

		results, err := s.svc.Search(ctx, args.Query, limit, args.SourceTypes)
		if err != nil {
			return nil, searchOutput{}, err
		}

		out := searchOutput{Results: make([]searchResultOutput, len(results))}
		titles := make([]string, len(results))
		for i, r := range results {
			out.Results[i] = resultToOutput(r)
			titles[i] = r.Title
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summarize(args.Query, titles)}},
		}, out, nil
	})

	s.registerHierarchySearch()
	s.registerAttachmentSearch()
}
