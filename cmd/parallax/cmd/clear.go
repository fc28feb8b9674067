package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/output"
)

func newClearCmd() *cobra.Command {
	var tenantID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear a tenant's vector and graph state",
		Long: `Remove all of a tenant's data from the vector store and the knowledge
graph. The cloud-search index is shared and is never cleared by this
command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("clear is destructive; re-run with --yes to confirm")
			}

			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			tctx, err := app.registry.AuthorizeIngest(ctx, tenantID, time.Time{}, 0, 0)
			if err != nil {
				return err
			}

			orch, err := app.orchestrator()
			if err != nil {
				return err
			}
			defer orch.Close()

			if err := orch.Clear(ctx, tctx); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Cleared vector and graph state for tenant %s", tenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive clear")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
