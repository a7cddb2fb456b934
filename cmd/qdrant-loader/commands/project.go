package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/source"
)

// NewProjectCmd constructs the `qdrant-loader project` command group (§6):
// list, status, validate, each supporting --project-id and --format.
func NewProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and validate configured projects",
	}
	cmd.AddCommand(newProjectListCmd(), newProjectStatusCmd(), newProjectValidateCmd())
	return cmd
}

// projectIDs returns cfg.Projects' keys, filtered to a single id when set,
// sorted for deterministic output.
func projectIDs(only string) ([]string, error) {
	if only != "" {
		if _, ok := cfg.Projects[only]; !ok {
			return nil, fmt.Errorf("project: unknown project_id %q", only)
		}
		return []string{only}, nil
	}
	ids := make([]string, 0, len(cfg.Projects))
	for id := range cfg.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func newProjectListCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := projectIDs("")
			if err != nil {
				return withExitCode(2, err)
			}

			type row struct {
				ProjectID   string `json:"project_id"`
				DisplayName string `json:"display_name"`
				Sources     int    `json:"sources"`
			}
			rows := make([]row, 0, len(ids))
			for _, id := range ids {
				p := cfg.Projects[id]
				total := 0
				for _, instances := range p.Sources {
					total += len(instances)
				}
				rows = append(rows, row{ProjectID: id, DisplayName: p.DisplayName, Sources: total})
			}

			return renderFormat(format, rows, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PROJECT_ID\tDISPLAY_NAME\tSOURCES")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%s\t%d\n", r.ProjectID, r.DisplayName, r.Sources)
				}
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	return cmd
}

func newProjectStatusCmd() *cobra.Command {
	var projectID, format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-project ingestion state from the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := projectIDs(projectID)
			if err != nil {
				return withExitCode(2, err)
			}

			store, err := openStore()
			if err != nil {
				return withExitCode(2, fmt.Errorf("project status: %w", err))
			}
			defer store.Close()

			type row struct {
				ProjectID string `json:"project_id"`
				Documents int    `json:"documents"`
				Deleted   int    `json:"deleted"`
			}
			rows := make([]row, 0, len(ids))
			for _, id := range ids {
				records, err := store.List(cmd.Context(), id, "", "")
				if err != nil {
					return withExitCode(2, fmt.Errorf("project status: %s: %w", id, err))
				}
				deleted := 0
				for _, rec := range records {
					if rec.IsDeleted {
						deleted++
					}
				}
				rows = append(rows, row{ProjectID: id, Documents: len(records), Deleted: deleted})
			}

			return renderFormat(format, rows, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PROJECT_ID\tDOCUMENTS\tDELETED")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%d\t%d\n", r.ProjectID, r.Documents, r.Deleted)
				}
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "Restrict to a single project")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	return cmd
}

func newProjectValidateCmd() *cobra.Command {
	var projectID, format string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate auth against every configured source by probing enumeration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := projectIDs(projectID)
			if err != nil {
				return withExitCode(2, err)
			}

			type row struct {
				ProjectID  string `json:"project_id"`
				SourceType string `json:"source_type"`
				SourceName string `json:"source_name"`
				OK         bool   `json:"ok"`
				Error      string `json:"error,omitempty"`
			}
			var rows []row
			authFailure := false

			for _, id := range ids {
				for kind, instances := range cfg.Projects[id].Sources {
					for name, settings := range instances {
						r := row{ProjectID: id, SourceType: kind, SourceName: name}
						if err := probeSource(cmd.Context(), id, kind, name, settings); err != nil {
							r.Error = err.Error()
							var hcErr *httpclient.Error
							if errors.As(err, &hcErr) && hcErr.Kind == httpclient.KindAuth {
								authFailure = true
							}
						} else {
							r.OK = true
						}
						rows = append(rows, r)
					}
				}
			}

			if err := renderFormat(format, rows, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PROJECT_ID\tSOURCE_TYPE\tSOURCE_NAME\tOK\tERROR")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.ProjectID, r.SourceType, r.SourceName, r.OK, r.Error)
				}
			}); err != nil {
				return withExitCode(2, err)
			}

			if authFailure {
				return withExitCode(4, fmt.Errorf("project validate: auth failure against one or more sources"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "Restrict to a single project")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	return cmd
}

// probeSource constructs the adapter and drains up to its first emitted
// document or error, bounded by a short timeout — enough to surface an
// auth failure without running a full enumeration.
func probeSource(ctx context.Context, projectID, kind, name string, settings map[string]any) error {
	adapter, err := source.New(kind, settings)
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	docCh, errCh := adapter.Enumerate(probeCtx, source.ProjectContext{ProjectID: projectID, SourceName: name, Settings: settings})
	select {
	case <-docCh:
		return nil
	case err, ok := <-errCh:
		if !ok || err == nil {
			return nil
		}
		return err
	case <-probeCtx.Done():
		return nil
	}
}

// renderFormat writes rows as JSON when format == "json", or via tableFn
// (a tabwriter-based table) otherwise.
func renderFormat[T any](format string, rows []T, tableFn func(*tabwriter.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(cmdStdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(cmdStdout, 0, 4, 2, ' ', 0)
	tableFn(w)
	return w.Flush()
}
