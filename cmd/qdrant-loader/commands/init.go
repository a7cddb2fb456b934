package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/qdrant-loader/qdrant-loader-go/internal/logging"
)

// NewInitCmd constructs the `qdrant-loader init` command (§6): opens (and
// migrates) the state database and ensures the configured Qdrant collection
// exists, optionally recreating it.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the state database and the configured Qdrant collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			store, err := openStore()
			if err != nil {
				return withExitCode(2, fmt.Errorf("init: %w", err))
			}
			defer store.Close()

			manager, err := openManager()
			if err != nil {
				return withExitCode(3, fmt.Errorf("init: %w", err))
			}
			defer manager.Close()

			ctx := cmd.Context()
			size := vectorSize()
			if err := manager.InitCollection(ctx, collectionName(), size, force); err != nil {
				return withExitCode(3, fmt.Errorf("init: %w", err))
			}

			log.Info("init: ready",
				slog.String("collection", collectionName()),
				slog.Uint64("vector_size", size),
				slog.Bool("force", force),
			)
			fmt.Printf("qdrant-loader initialized: collection %q ready\n", collectionName())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Delete and recreate the collection if it already exists")
	return cmd
}
