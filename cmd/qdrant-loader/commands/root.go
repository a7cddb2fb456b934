// Package commands defines all Cobra CLI commands for the qdrant-loader
// binary.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qdrant-loader/qdrant-loader-go/internal/audit"
	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
	"github.com/qdrant-loader/qdrant-loader-go/internal/logging"
)

// workspacePath holds the --workspace flag value shared by every
// subcommand (§6: every command but `version` takes --workspace).
var workspacePath string

// cfg is the resolved configuration, populated by PersistentPreRunE before
// any subcommand's RunE runs.
var cfg *config.Config

// loadedConfigPath is the YAML file actually loaded, if any, for audit
// logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach
// to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qdrant-loader",
		Short: "Ingest documentation and code into Qdrant for retrieval-augmented generation",
		Long: `qdrant-loader ingests content from git repositories, Confluence spaces,
Jira projects, public documentation sites, and local files into a Qdrant
vector store, tracking per-document state so repeat runs only process what
changed.

Configuration is read from <workspace>/qdrant-loader.yaml (or the file
resolved by QDRANT_LOADER_CONFIG / ~/.qdrant-loader/config.yaml / the
current directory). Environment variables for the handful of global
connection settings always override the YAML file.

A companion qdrant-loader-mcp binary exposes semantic search over the
ingested content to any MCP-compatible client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			loaded, path, err := config.Load(workspaceConfigPath(), log)
			if err != nil {
				return withExitCode(2, err)
			}
			cfg = loaded
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&workspacePath, "workspace", ".", "Workspace directory containing qdrant-loader.yaml and the state database")

	root.AddCommand(
		NewInitCmd(),
		NewIngestCmd(),
		NewConfigCmd(),
		NewProjectCmd(),
		NewVersionCmd(),
	)

	return root
}

// workspaceConfigPath resolves <workspace>/qdrant-loader.yaml when it
// exists, deferring to config.Load's own search order otherwise so
// `version`/`--help` never require a workspace to be set up.
func workspaceConfigPath() string {
	if workspacePath == "" {
		return ""
	}
	candidate := filepath.Join(workspacePath, "qdrant-loader.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
