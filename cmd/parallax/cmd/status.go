package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/backend"
)

// backendStatus is one row of the status report.
type backendStatus struct {
	Backend    string `json:"backend"`
	Configured bool   `json:"configured"`
	Healthy    bool   `json:"healthy"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the health of every configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			statuses := []backendStatus{
				probe(ctx, backend.CloudSearch, app.cloud),
				probe(ctx, backend.Vector, app.vectorStore),
				probe(ctx, backend.Graph, app.graphStore),
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tCONFIGURED\tHEALTHY")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%v\t%v\n", s.Backend, s.Configured, s.Healthy)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func probe(ctx context.Context, name string, a backend.Adapter) backendStatus {
	s := backendStatus{Backend: name, Configured: a != nil}
	if a != nil {
		s.Healthy = a.Healthy(ctx)
	}
	return s
}
