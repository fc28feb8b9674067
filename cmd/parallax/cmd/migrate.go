package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/backend/graph"
	"github.com/parallax-rag/parallax/internal/output"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the catalog and graph schemas",
		Long: `Create the tenant, document, chunk, and graph tables in Postgres,
including the pgvector extension and indexes. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.Bootstrap(ctx, cfg.Catalog.EmbeddingDim); err != nil {
				return err
			}
			if g, ok := app.graphStore.(*graph.Adapter); ok {
				if err := g.Bootstrap(ctx); err != nil {
					return err
				}
			}

			out := output.New(cmd.OutOrStdout())
			out.Success("Schema is up to date")
			return nil
		},
	}
}
