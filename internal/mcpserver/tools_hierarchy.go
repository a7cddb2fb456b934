package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qdrant-loader/qdrant-loader-go/internal/search"
)

type hierarchyFilterInput struct {
	RootOnly    bool   `json:"root_only,omitempty" jsonschema:"Keep only candidates with no ancestors"`
	Depth       *int   `json:"depth,omitempty" jsonschema:"Keep only candidates at exactly this ancestor depth"`
	ParentTitle string `json:"parent_title,omitempty" jsonschema:"Keep only candidates whose immediate parent title equals this"`
	HasChildren bool   `json:"has_children,omitempty" jsonschema:"Keep only candidates whose title is an ancestor of at least one stored Confluence page in the configured projects"`
}

type hierarchySearchInput struct {
	Query               string               `json:"query" jsonschema:"required,Natural-language search query"`
	Limit               int                  `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 10)"`
	OrganizeByHierarchy bool                 `json:"organize_by_hierarchy,omitempty" jsonschema:"Group and sort results by their root ancestor and ancestor path"`
	HierarchyFilter     hierarchyFilterInput `json:"hierarchy_filter,omitempty" jsonschema:"Filters over Confluence page hierarchy"`
}

type hierarchyResultOutput struct {
	searchResultOutput
	Ancestors []string `json:"ancestors,omitempty"`
}

type hierarchySearchOutput struct {
	Results []hierarchyResultOutput `json:"results"`
}

func (s *Server) registerHierarchySearch() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "hierarchy_search",
		Description: "Semantic search restricted to Confluence pages, with filtering and grouping by page hierarchy (ancestors).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args hierarchySearchInput) (*mcp.CallToolResult, hierarchySearchOutput, error) {
		if args.Query == "" {
			return nil, hierarchySearchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}

		hf := search.HierarchyFilter{
			RootOnly:    args.HierarchyFilter.RootOnly,
			Depth:       args.HierarchyFilter.Depth,
			ParentTitle: args.HierarchyFilter.ParentTitle,
			HasChildren: args.HierarchyFilter.HasChildren,
		}

		results, err := s.svc.HierarchySearch(ctx, args.Query, limit, args.OrganizeByHierarchy, hf)
		if err != nil {
			return nil, hierarchySearchOutput{}, err
		}

		out := hierarchySearchOutput{Results: make([]hierarchyResultOutput, len(results))}
		titles := make([]string, len(results))
		for i, r := range results {
			out.Results[i] = hierarchyResultOutput{searchResultOutput: resultToOutput(r.Result), Ancestors: r.Ancestors}
			titles[i] = r.Title
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summarize(args.Query, titles)}},
		}, out, nil
	})
}
