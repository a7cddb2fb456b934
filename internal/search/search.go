// Package search implements the Search Service (§4.11): three read-only
// tools — search, hierarchy_search, attachment_search — each a pure
// function over one embedding call and one or more filtered QDrant queries
// (attachment_search adds one query per distinct parent document).
// The Service never writes; the Orchestrator (internal/ingestion) is the
// store's only writer (§5's "single-writer" invariant).
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

// Result is one ranked hit, shaped per §4.11's return schema.
type Result struct {
	Score      float32
	DocumentID string
	ChunkIndex int
	Content    string
	SourceType string
	SourceName string
	URL        string
	Title      string
	Metadata   map[string]string
}

// Service implements the three search tools over a Manager + Embedder pair,
// scoped to a fixed collection and the set of project ids configured for
// this deployment (§4.11's `project_id in configured_projects`).
type Service struct {
	manager    rag.Manager
	embedder   rag.Embedder
	collection string
	projectIDs []string
}

// New constructs a Service. projectIDs is the full set of configured
// project ids every query is scoped to.
func New(manager rag.Manager, embedder rag.Embedder, collection string, projectIDs []string) *Service {
	return &Service{manager: manager, embedder: embedder, collection: collection, projectIDs: projectIDs}
}

func (s *Service) projectFilter() (single string, multi []string) {
	if len(s.projectIDs) == 1 {
		return s.projectIDs[0], nil
	}
	return "", s.projectIDs
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("search: embedder returned no vector for query")
	}
	return vecs[0], nil
}

func toResult(hit rag.SearchHit) Result {
	return Result{
		Score:      hit.Score,
		DocumentID: hit.DocumentID,
		ChunkIndex: hit.ChunkIndex,
		Content:    hit.Content,
		SourceType: hit.SourceType,
		SourceName: hit.SourceName,
		URL:        hit.URL,
		Title:      hit.Title,
		Metadata:   hit.Metadata,
	}
}

// rankLess implements §4.11's universal tie-break: higher score first, then
// newer metadata.updated_at first, then lexicographic document_id.
func rankLess(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ua, ub := a.Metadata["updated_at"], b.Metadata["updated_at"]
	if ua != ub {
		return ua > ub
	}
	return a.DocumentID < b.DocumentID
}

func sortByRank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return rankLess(results[i], results[j]) })
}

// Search embeds query and returns up to limit ranked results, optionally
// restricted to sourceTypes.
func (s *Service) Search(ctx context.Context, query string, limit int, sourceTypes []string) ([]Result, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	projectID, projectIDs := s.projectFilter()
	filter := rag.SearchFilter{ProjectID: projectID, ProjectIDs: projectIDs, SourceTypes: sourceTypes}

	hits, err := s.manager.Search(ctx, s.collection, vec, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}
	sortByRank(results)
	return results, nil
}
