package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/docid"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// gitSettings mirrors `sources.git.<name>`. Grounded on
// github.com/intelligencedev-manifold's gitingest package: PlainClone-if-
// absent/PlainOpen-if-present, then a tree walk.
type gitSettings struct {
	URL       string   `json:"url"`
	Branch    string   `json:"branch"`
	LocalPath string   `json:"local_path"`
	Extensions []string `json:"extensions"`
}

type gitAdapter struct {
	url    string
	branch string
	local  string
	exts   map[string]bool
}

func newGitAdapter(raw map[string]any) (Adapter, error) {
	var s gitSettings
	if err := decodeSettings(raw, &s); err != nil {
		return nil, err
	}
	if s.URL == "" {
		return nil, fmt.Errorf("source: git requires a non-empty url")
	}
	if s.LocalPath == "" {
		return nil, fmt.Errorf("source: git requires local_path (working clone directory)")
	}
	exts := map[string]bool{}
	for _, e := range s.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &gitAdapter{url: s.URL, branch: s.Branch, local: s.LocalPath, exts: exts}, nil
}

func (a *gitAdapter) Enumerate(ctx context.Context, pc ProjectContext) (<-chan model.Document, <-chan error) {
	docCh := make(chan model.Document)
	errCh := make(chan error, 1)

	go func() {
		defer close(docCh)

		repo, err := a.openOrClone()
		if err != nil {
			emitError(errCh, fmt.Errorf("source: git open/clone %s: %w", a.url, err))
			return
		}

		head, err := repo.Head()
		if err != nil {
			emitError(errCh, fmt.Errorf("source: git head: %w", err))
			return
		}
		commitSHA := head.Hash().String()

		err = filepath.WalkDir(a.local, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if len(a.exts) > 0 && !a.exts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			rel, err := filepath.Rel(a.local, path)
			if err != nil {
				return err
			}

			url := a.url + "/blob/" + a.branchOrHead() + "/" + filepath.ToSlash(rel)
			id := docid.DocumentID(string(model.SourceGit), pc.SourceName, url)

			doc := model.Document{
				ID:            id,
				Title:         filepath.Base(path),
				SourceType:    model.SourceGit,
				SourceName:    pc.SourceName,
				URL:           url,
				VersionSignal: commitSHA,
				Metadata: map[string]string{
					"commit_sha": commitSHA,
					"repo_path":  filepath.ToSlash(rel),
					"local_path": path,
				},
			}

			select {
			case docCh <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		emitError(errCh, err)
	}()

	return docCh, errCh
}

func (a *gitAdapter) branchOrHead() string {
	if a.branch != "" {
		return a.branch
	}
	return "HEAD"
}

func (a *gitAdapter) openOrClone() (*gogit.Repository, error) {
	if _, err := os.Stat(a.local); os.IsNotExist(err) {
		opts := &gogit.CloneOptions{URL: a.url}
		if a.branch != "" {
			opts.ReferenceName = branchRef(a.branch)
		}
		return gogit.PlainClone(a.local, false, opts)
	}

	repo, err := gogit.PlainOpen(a.local)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	pullOpts := &gogit.PullOptions{}
	if a.branch != "" {
		pullOpts.ReferenceName = branchRef(a.branch)
	}
	if err := wt.Pull(pullOpts); err != nil && err != gogit.NoErrAlreadyUpToDate {
		return nil, err
	}
	return repo, nil
}

func branchRef(branch string) plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(branch)
}
