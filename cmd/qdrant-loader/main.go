// Command qdrant-loader is the entry point for the ingestion CLI: init,
// ingest, config, project, and version subcommands over a workspace's
// YAML configuration.
package main

import (
	"fmt"
	"os"

	"github.com/qdrant-loader/qdrant-loader-go/cmd/qdrant-loader/commands"
)

func main() {
	err := commands.NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(commands.ExitCode(err))
}
