package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/qdrant-loader/qdrant-loader-go/internal/docid"
	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// publicDocsSettings mirrors `sources.publicdocs.<name>`.
type publicDocsSettings struct {
	BaseURL   string `json:"base_url"`
	MaxPages  int    `json:"max_pages"`
}

// publicDocsAdapter crawls breadth-first from a single seed page, following
// same-origin links at any depth until max_pages pages have been visited,
// using goquery for link and title extraction —
// grounded on the teacher corpus's niski84-the-hive HTML parser, which uses
// goquery the same way (NewDocumentFromReader + doc.Find).
type publicDocsAdapter struct {
	baseURL  string
	maxPages int
	hc       *httpclient.Client
}

func newPublicDocsAdapter(raw map[string]any) (Adapter, error) {
	var s publicDocsSettings
	if err := decodeSettings(raw, &s); err != nil {
		return nil, err
	}
	if s.BaseURL == "" {
		return nil, fmt.Errorf("source: publicdocs requires a non-empty base_url")
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}
	return &publicDocsAdapter{
		baseURL:  s.BaseURL,
		maxPages: maxPages,
		hc:       httpclient.NewClient(httpclient.Config{}),
	}, nil
}

func (a *publicDocsAdapter) Enumerate(ctx context.Context, pc ProjectContext) (<-chan model.Document, <-chan error) {
	docCh := make(chan model.Document)
	errCh := make(chan error, 1)

	go func() {
		defer close(docCh)
		defer a.hc.Close()

		seen := map[string]bool{}
		queue := []string{a.baseURL}

		for len(queue) > 0 && len(seen) < a.maxPages {
			if ctx.Err() != nil {
				emitError(errCh, ctx.Err())
				return
			}

			url := queue[0]
			queue = queue[1:]
			if seen[url] {
				continue
			}
			seen[url] = true

			resp, err := a.hc.Do(ctx, http.MethodGet, url, http.Header{}, nil)
			if err != nil {
				continue // one bad page does not stop the crawl
			}
			doc, err := goquery.NewDocumentFromReader(resp.Body)
			resp.Body.Close()
			if err != nil {
				continue
			}

			title := strings.TrimSpace(doc.Find("title").First().Text())
			id := docid.DocumentID(string(model.SourcePublicDocs), pc.SourceName, url)

			out := model.Document{
				ID:            id,
				Title:         title,
				SourceType:    model.SourcePublicDocs,
				SourceName:    pc.SourceName,
				URL:           url,
				VersionSignal: resp.Header.Get("ETag") + resp.Header.Get("Last-Modified"),
			}

			select {
			case docCh <- out:
			case <-ctx.Done():
				emitError(errCh, ctx.Err())
				return
			}

			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				if next := resolveSameOrigin(a.baseURL, href); next != "" && !seen[next] {
					queue = append(queue, next)
				}
			})
		}

		emitError(errCh, nil)
	}()

	return docCh, errCh
}

// resolveSameOrigin returns abs resolved against base if it shares base's
// origin, else "".
func resolveSameOrigin(base, href string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	abs, ok := joinURL(base, href)
	if !ok {
		return ""
	}
	if !strings.HasPrefix(abs, originOf(base)) {
		return ""
	}
	return abs
}
