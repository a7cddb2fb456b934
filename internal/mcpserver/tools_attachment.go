package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qdrant-loader/qdrant-loader-go/internal/search"
)

type attachmentFilterInput struct {
	AttachmentsOnly     bool   `json:"attachments_only,omitempty" jsonschema:"Restrict candidates to documents with metadata.attachment_of set"`
	FileType            string `json:"file_type,omitempty" jsonschema:"Match content_type or file extension, case-insensitive (e.g. pdf, docx)"`
	FileSizeMin         int64  `json:"file_size_min,omitempty" jsonschema:"Minimum file size in bytes"`
	FileSizeMax         int64  `json:"file_size_max,omitempty" jsonschema:"Maximum file size in bytes"`
	Author              string `json:"author,omitempty" jsonschema:"Match metadata.author exactly"`
	ParentDocumentTitle string `json:"parent_document_title,omitempty" jsonschema:"Match the parent document's title exactly"`
}

type attachmentSearchInput struct {
	Query                string                `json:"query" jsonschema:"required,Natural-language search query"`
	Limit                int                   `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 10)"`
	IncludeParentContext *bool                 `json:"include_parent_context,omitempty" jsonschema:"Attach the parent document's title and url to each result (default: true)"`
	AttachmentFilter     attachmentFilterInput `json:"attachment_filter,omitempty" jsonschema:"Filters over attachment metadata"`
}

type attachmentResultOutput struct {
	searchResultOutput
	ParentTitle string `json:"parent_title,omitempty"`
	ParentURL   string `json:"parent_url,omitempty"`
}

type attachmentSearchOutput struct {
	Results []attachmentResultOutput `json:"results"`
}

func (s *Server) registerAttachmentSearch() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "attachment_search",
		Description: "Semantic search over document attachments, with filtering by file type, size, author, and parent document, optionally attaching parent document context.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args attachmentSearchInput) (*mcp.CallToolResult, attachmentSearchOutput, error) {
		if args.Query == "" {
			return nil, attachmentSearchOutput{}, fmt.Errorf("query is required")
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		includeParent := true
		if args.IncludeParentContext != nil {
			includeParent = *args.IncludeParentContext
		}

		af := search.AttachmentFilter{
			AttachmentsOnly:     args.AttachmentFilter.AttachmentsOnly,
			FileType:            args.AttachmentFilter.FileType,
			FileSizeMin:         args.AttachmentFilter.FileSizeMin,
			FileSizeMax:         args.AttachmentFilter.FileSizeMax,
			Author:              args.AttachmentFilter.Author,
			ParentDocumentTitle: args.AttachmentFilter.ParentDocumentTitle,
		}

		results, err := s.svc.AttachmentSearch(ctx, args.Query, limit, includeParent, af)
		if err != nil {
			return nil, attachmentSearchOutput{}, err
		}

		out := attachmentSearchOutput{Results: make([]attachmentResultOutput, len(results))}
		titles := make([]string, len(results))
		for i, r := range results {
			out.Results[i] = attachmentResultOutput{
				searchResultOutput: resultToOutput(r.Result),
				ParentTitle:        r.ParentTitle,
				ParentURL:          r.ParentURL,
			}
			titles[i] = r.Title
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summarize(args.Query, titles)}},
		}, out, nil
	})
}
