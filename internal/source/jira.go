package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/docid"
	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// jiraSettings mirrors `sources.jira.<name>`.
type jiraSettings struct {
	BaseURL    string `json:"base_url"`
	ProjectKey string `json:"project_key"`
	Email      string `json:"email"`
	APIToken   string `json:"api_token"`
}

// jiraAdapter walks Jira REST API v3's paginated issue search for one
// project. As thin as confluenceAdapter and for the same reason.
type jiraAdapter struct {
	baseURL    string
	projectKey string
	token      string
	hc         *httpclient.Client
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

type jiraSearchResponse struct {
	Issues     []jiraIssue `json:"issues"`
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
}

func newJiraAdapter(raw map[string]any) (Adapter, error) {
	var s jiraSettings
	if err := decodeSettings(raw, &s); err != nil {
		return nil, err
	}
	if s.BaseURL == "" || s.ProjectKey == "" {
		return nil, fmt.Errorf("source: jira requires base_url and project_key")
	}
	return &jiraAdapter{
		baseURL:    strings.TrimSuffix(s.BaseURL, "/"),
		projectKey: s.ProjectKey,
		token:      s.APIToken,
		hc:         httpclient.NewClient(httpclient.Config{}),
	}, nil
}

func (a *jiraAdapter) Enumerate(ctx context.Context, pc ProjectContext) (<-chan model.Document, <-chan error) {
	docCh := make(chan model.Document)
	errCh := make(chan error, 1)

	go func() {
		defer close(docCh)
		defer a.hc.Close()

		startAt := 0
		for {
			url := fmt.Sprintf("%s/rest/api/3/search?jql=project=%s&startAt=%d&maxResults=50",
				a.baseURL, a.projectKey, startAt)

			headers := http.Header{"Accept": []string{"application/json"}}
			if a.token != "" {
				headers.Set("Authorization", "Bearer "+a.token)
			}
			resp, err := a.hc.Do(ctx, http.MethodGet, url, headers, nil)
			if err != nil {
				emitError(errCh, err)
				return
			}

			var result jiraSearchResponse
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				emitError(errCh, fmt.Errorf("source: jira: read body: %w", err))
				return
			}
			if err := json.Unmarshal(body, &result); err != nil {
				emitError(errCh, fmt.Errorf("source: jira: decode: %w", err))
				return
			}

			for _, issue := range result.Issues {
				issueURL := fmt.Sprintf("%s/browse/%s", a.baseURL, issue.Key)
				id := docid.DocumentID(string(model.SourceJira), pc.SourceName, issueURL)

				doc := model.Document{
					ID:            id,
					Title:         issue.Fields.Summary,
					SourceType:    model.SourceJira,
					SourceName:    pc.SourceName,
					URL:           issueURL,
					VersionSignal: issue.Fields.Updated,
				}

				select {
				case docCh <- doc:
				case <-ctx.Done():
					emitError(errCh, ctx.Err())
					return
				}
			}

			startAt += len(result.Issues)
			if len(result.Issues) == 0 || startAt >= result.Total {
				break
			}
		}

		emitError(errCh, nil)
	}()

	return docCh, errCh
}
