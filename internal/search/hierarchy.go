package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

// HierarchyFilter narrows hierarchy_search's candidate set (§4.11).
type HierarchyFilter struct {
	RootOnly     bool
	Depth        *int
	ParentTitle  string
	HasChildren  bool
}

// HierarchyResult adds the ancestor path to Result so callers can group by
// root ancestor and render breadcrumbs.
type HierarchyResult struct {
	Result
	Ancestors []string
}

func ancestorsOf(r Result) []string {
	raw := r.Metadata["hierarchy_ancestors"]
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "|")
}

// HierarchySearch embeds query, retrieves a wider confluence-only candidate
// set (limit*3), applies hierarchy_filter, truncates to limit, and — when
// organizeByHierarchy is set — groups by root ancestor and sorts each group
// by (ancestor path, score desc).
func (s *Service) HierarchySearch(ctx context.Context, query string, limit int, organizeByHierarchy bool, hf HierarchyFilter) ([]HierarchyResult, error) {
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	projectID, projectIDs := s.projectFilter()
	filter := rag.SearchFilter{ProjectID: projectID, ProjectIDs: projectIDs, SourceType: "confluence"}

	hits, err := s.manager.Search(ctx, s.collection, vec, limit*3, filter)
	if err != nil {
		return nil, fmt.Errorf("search: hierarchy_search: %w", err)
	}

	// has_children must reflect whether a title appears as an ancestor
	// anywhere in the stored set, not just within this search's limit*3
	// ranked candidates — a page whose only child ranks outside that window
	// would otherwise be reported as childless. One secondary filtered scan
	// per call, cached across every candidate it's checked against below.
	childOf := map[string]bool{}
	if hf.HasChildren {
		childOf, err = s.manager.AncestorTitles(ctx, s.collection, filter)
		if err != nil {
			return nil, fmt.Errorf("search: hierarchy_search: %w", err)
		}
	}

	candidates := make([]HierarchyResult, 0, len(hits))
	for _, h := range hits {
		r := toResult(h)
		ancestors := ancestorsOf(r)

		if hf.RootOnly && len(ancestors) != 0 {
			continue
		}
		if hf.Depth != nil && len(ancestors) != *hf.Depth {
			continue
		}
		if hf.ParentTitle != "" {
			if len(ancestors) == 0 || ancestors[len(ancestors)-1] != hf.ParentTitle {
				continue
			}
		}
		if hf.HasChildren && !childOf[r.Title] {
			continue
		}

		candidates = append(candidates, HierarchyResult{Result: r, Ancestors: ancestors})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return rankLess(candidates[i].Result, candidates[j].Result) })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if organizeByHierarchy {
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			rootA, rootB := rootOf(a.Ancestors), rootOf(b.Ancestors)
			if rootA != rootB {
				return rootA < rootB
			}
			pathA, pathB := strings.Join(a.Ancestors, "|"), strings.Join(b.Ancestors, "|")
			if pathA != pathB {
				return pathA < pathB
			}
			return a.Score > b.Score
		})
	}

	return candidates, nil
}

func rootOf(ancestors []string) string {
	if len(ancestors) == 0 {
		return ""
	}
	return ancestors[0]
}
