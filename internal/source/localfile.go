package source

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/docid"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// localFileSettings mirrors config.Source's `sources.localfile.<name>` map.
type localFileSettings struct {
	Path      string   `json:"path"`
	Extensions []string `json:"extensions"`
}

// localFileAdapter walks a directory tree, using mtime+size as the cheap
// per-file version signal (§4.7) — the same shape of signal the teacher's
// ingestion.Pipeline has no equivalent for, since it only ever fetched a
// single remote URL per source.
type localFileAdapter struct {
	root string
	exts map[string]bool
}

func newLocalFileAdapter(raw map[string]any) (Adapter, error) {
	var s localFileSettings
	if err := decodeSettings(raw, &s); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return nil, fmt.Errorf("source: localfile requires a non-empty path")
	}
	exts := map[string]bool{}
	for _, e := range s.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &localFileAdapter{root: s.Path, exts: exts}, nil
}

func (a *localFileAdapter) Enumerate(ctx context.Context, pc ProjectContext) (<-chan model.Document, <-chan error) {
	docCh := make(chan model.Document)
	errCh := make(chan error, 1)

	go func() {
		defer close(docCh)

		err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			if len(a.exts) > 0 && !a.exts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			url := docid.LocalFileURL(path)
			id := docid.DocumentID(string(model.SourceLocalFile), pc.SourceName, url)

			doc := model.Document{
				ID:            id,
				Title:         filepath.Base(path),
				SourceType:    model.SourceLocalFile,
				SourceName:    pc.SourceName,
				URL:           url,
				UpdatedAt:     info.ModTime(),
				VersionSignal: versionSignal(info),
				Metadata: map[string]string{
					"file_size": fmt.Sprintf("%d", info.Size()),
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

func versionSignal(info fs.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
}
