package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qdrant-loader/qdrant-loader-go/internal/audit"
)

// NewConfigCmd constructs the `qdrant-loader config` command (§6): prints
// the fully resolved configuration document with every secret redacted.
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := audit.RedactConfig(*cfg)

			out, err := yaml.Marshal(redacted)
			if err != nil {
				return withExitCode(2, fmt.Errorf("config: render: %w", err))
			}

			fmt.Print(string(out))
			return nil
		},
	}
}
