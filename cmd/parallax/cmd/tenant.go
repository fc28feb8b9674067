package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/output"
	"github.com/parallax-rag/parallax/internal/tenant"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  `Create, list, suspend, and inspect tenants.`,
	}

	cmd.AddCommand(newTenantCreateCmd())
	cmd.AddCommand(newTenantListCmd())
	cmd.AddCommand(newTenantStatusCmd("suspend", tenant.StatusSuspended, "Suspend a tenant (rejects all requests)"))
	cmd.AddCommand(newTenantStatusCmd("activate", tenant.StatusActive, "Reactivate a suspended tenant"))
	cmd.AddCommand(newTenantStatusCmd("delete", tenant.StatusDeleted, "Soft-delete a tenant"))
	cmd.AddCommand(newTenantUsageCmd())

	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var name string
	var maxDocuments int64
	var maxStorageMB int64

	cmd := &cobra.Command{
		Use:   "create <tenant-id>",
		Short: "Create a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			rec := &tenant.Record{
				ID:              args[0],
				Name:            name,
				Status:          tenant.StatusActive,
				MaxDocuments:    maxDocuments,
				MaxStorageBytes: maxStorageMB * 1024 * 1024,
			}
			if rec.Name == "" {
				rec.Name = rec.ID
			}

			if err := app.store.CreateTenant(cmd.Context(), rec); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Created tenant %s", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the tenant id)")
	cmd.Flags().Int64Var(&maxDocuments, "max-documents", 0, "Document quota (0 = unlimited)")
	cmd.Flags().Int64Var(&maxStorageMB, "max-storage-mb", 0, "Storage quota in MB (0 = unlimited)")

	return cmd
}

func newTenantListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			tenants, err := app.store.ListTenants(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tenants)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMAX DOCS\tCREATED")
			for _, t := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					t.ID, t.Name, t.Status, t.MaxDocuments,
					t.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newTenantStatusCmd(use string, status tenant.Status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tenant-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.store.UpdateTenantStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			app.registry.Invalidate(args[0])

			out := output.New(cmd.OutOrStdout())
			out.Successf("Tenant %s is now %s", args[0], status)
			return nil
		},
	}
}

func newTenantUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage <tenant-id>",
		Short: "Show a tenant's document and storage usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			usage, err := app.store.GetUsage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "documents: %d\nstorage:   %.2f MB\n",
				usage.Documents, float64(usage.StorageBytes)/(1024*1024))
			return nil
		},
	}
}
