package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

// AttachmentFilter narrows attachment_search's candidate set (§4.11).
type AttachmentFilter struct {
	AttachmentsOnly   bool
	FileType          string // compared against metadata.content_type or the URL's extension, case-insensitive
	FileSizeMin       int64
	FileSizeMax       int64 // 0 means unbounded
	Author            string
	ParentDocumentTitle string
}

// AttachmentResult adds the parent document's title/URL when
// include_parent_context is requested.
type AttachmentResult struct {
	Result
	ParentTitle string
	ParentURL   string
}

// AttachmentSearch embeds query, retrieves a wider candidate set (limit*3),
// applies attachment_filter, and — when includeParentContext — batches one
// lookup per distinct parent document id to attach its title/URL.
func (s *Service) AttachmentSearch(ctx context.Context, query string, limit int, includeParentContext bool, af AttachmentFilter) ([]AttachmentResult, error) {
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	projectID, projectIDs := s.projectFilter()
	filter := rag.SearchFilter{ProjectID: projectID, ProjectIDs: projectIDs}
	if af.AttachmentsOnly {
		isAttachment := true
		filter.Attachment = &isAttachment
	}

	hits, err := s.manager.Search(ctx, s.collection, vec, limit*3, filter)
	if err != nil {
		return nil, fmt.Errorf("search: attachment_search: %w", err)
	}

	candidates := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := toResult(h)
		if !matchesFileType(r, af.FileType) {
			continue
		}
		if size, ok := fileSize(r); ok {
			if af.FileSizeMin > 0 && size < af.FileSizeMin {
				continue
			}
			if af.FileSizeMax > 0 && size > af.FileSizeMax {
				continue
			}
		}
		if af.Author != "" && r.Metadata["author"] != af.Author {
			continue
		}
		if af.ParentDocumentTitle != "" && r.Metadata["parent_document_title"] != af.ParentDocumentTitle {
			continue
		}
		candidates = append(candidates, r)
	}

	sortByRank(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]AttachmentResult, len(candidates))
	for i, c := range candidates {
		out[i] = AttachmentResult{Result: c}
	}
	if includeParentContext {
		s.attachParentContext(ctx, vec, out)
	}
	return out, nil
}

func matchesFileType(r Result, fileType string) bool {
	if fileType == "" {
		return true
	}
	want := strings.ToLower(strings.TrimPrefix(fileType, "."))
	if ct := strings.ToLower(r.Metadata["content_type"]); ct != "" && strings.Contains(ct, want) {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(extOf(r.URL), "."))
	return ext == want
}

func extOf(url string) string {
	if i := strings.LastIndex(url, "."); i >= 0 {
		return url[i:]
	}
	return ""
}

func fileSize(r Result) (int64, bool) {
	raw := r.Metadata["file_size"]
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// attachParentContext batches one Search-by-document_id lookup per
// distinct parent id referenced by results, then fills in ParentTitle/URL.
// Reuses the query's own embedding vector: Manager exposes only vector
// search, not a plain payload-filter fetch, so the nearest chunk under
// document_id==parentID stands in for "the parent document".
func (s *Service) attachParentContext(ctx context.Context, vec []float32, results []AttachmentResult) {
	parentIDs := map[string]bool{}
	for _, r := range results {
		if p := r.Metadata["attachment_of"]; p != "" {
			parentIDs[p] = true
		}
	}
	if len(parentIDs) == 0 {
		return
	}

	projectID, projectIDs := s.projectFilter()
	parents := map[string]rag.SearchHit{}
	for id := range parentIDs {
		filter := rag.SearchFilter{ProjectID: projectID, ProjectIDs: projectIDs, DocumentID: id}
		hits, err := s.manager.Search(ctx, s.collection, vec, 1, filter)
		if err != nil || len(hits) == 0 {
			continue
		}
		parents[id] = hits[0]
	}

	for i, r := range results {
		parentID := r.Metadata["attachment_of"]
		if parent, ok := parents[parentID]; ok {
			results[i].ParentTitle = parent.Title
			results[i].ParentURL = parent.URL
		}
	}
}
