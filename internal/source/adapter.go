// Package source implements the Source Adapter interface (§4.7): one
// operation, Enumerate, producing a lazy sequence of model.Document
// headers (content may be empty — the Orchestrator fetches bytes itself
// for anything that changed). Each concrete adapter is a thin wrapper
// delegating pagination/auth/rate-limiting to a real library or
// internal/httpclient, per spec §1's explicit Non-goal on crawler
// internals.
package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// ProjectContext identifies the project a source instance belongs to and
// carries the settings map decoded from config.Project.Sources.
type ProjectContext struct {
	ProjectID  string
	SourceName string
	Settings   map[string]any
}

// Adapter enumerates the Documents (or DocumentHeaders — Content may be
// left empty when only metadata is cheap to obtain) for one configured
// source instance. Enumerate may be called once; the returned channel is
// closed when enumeration completes or ctx is cancelled. A non-nil error
// is sent as the final value on errCh before it closes.
type Adapter interface {
	Enumerate(ctx context.Context, pc ProjectContext) (<-chan model.Document, <-chan error)
}

// Registry maps a config `sources.<kind>` key to a constructor. The
// Orchestrator looks up adapters by kind rather than switching on a
// hardcoded list, so adding a new adapter kind never touches orchestrator
// code — the same "capability sets realized as one interface with a
// registry of constructors" pattern spec §GLOSSARY calls out explicitly.
type Constructor func(settings map[string]any) (Adapter, error)

var registry = map[string]Constructor{
	"localfile":  func(s map[string]any) (Adapter, error) { return newLocalFileAdapter(s) },
	"git":        func(s map[string]any) (Adapter, error) { return newGitAdapter(s) },
	"publicdocs": func(s map[string]any) (Adapter, error) { return newPublicDocsAdapter(s) },
	"confluence": func(s map[string]any) (Adapter, error) { return newConfluenceAdapter(s) },
	"jira":       func(s map[string]any) (Adapter, error) { return newJiraAdapter(s) },
}

// New constructs the Adapter registered for kind.
func New(kind string, settings map[string]any) (Adapter, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("source: unknown adapter kind %q", kind)
	}
	return ctor(settings)
}

// decodeSettings is a cheap shim from the YAML-decoded generic map into a
// concrete settings struct: round-trip through encoding/json, since
// gopkg.in/yaml.v3 already produces JSON-compatible map[string]any/[]any
// values for every scalar type config uses.
func decodeSettings(raw map[string]any, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("source: encode settings: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("source: decode settings: %w", err)
	}
	return nil
}

// emitError is a small helper so each adapter's goroutine can report a
// terminal error without every adapter re-implementing the same
// send-then-close dance.
func emitError(errCh chan<- error, err error) {
	if err != nil {
		errCh <- err
	}
	close(errCh)
}
