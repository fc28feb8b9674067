package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/search"
	"github.com/parallax-rag/parallax/internal/telemetry"
	"github.com/parallax-rag/parallax/internal/tenant"
)

func newQueryCmd() *cobra.Command {
	var tenantID string
	var limit int
	var timeout time.Duration
	var format string
	var showStats bool
	var withCloud, withVector, withGraph bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a hybrid query across every backend",
		Long: `Query all configured backends concurrently and merge the results
into one composite ranking with per-backend provenance.

A slow or failing backend only costs its own contribution; the merged
results report which backends were unavailable.

Each backend can be toggled off per call, e.g. --graph=false.

Examples:
  parallax query --tenant acme "onboarding checklist"
  parallax query --tenant acme --limit 5 --format json "refund policy"
  parallax query --tenant acme --cloud=false "who manages Acme Corp"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queryParams{
				tenantID:   tenantID,
				limit:      limit,
				timeout:    timeout,
				format:     format,
				showStats:  showStats,
				withCloud:  withCloud,
				withVector: withVector,
				withGraph:  withGraph,
			}
			return runQuery(cmd, strings.Join(args, " "), q)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum merged results (0 = configured default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall query deadline (0 = configured default)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print per-backend latency and availability stats")
	cmd.Flags().BoolVar(&withCloud, "cloud", true, "Include the cloud-search backend")
	cmd.Flags().BoolVar(&withVector, "vector", true, "Include the vector backend")
	cmd.Flags().BoolVar(&withGraph, "graph", true, "Include the graph backend")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

// queryParams carries the query command's flag values.
type queryParams struct {
	tenantID   string
	limit      int
	timeout    time.Duration
	format     string
	showStats  bool
	withCloud  bool
	withVector bool
	withGraph  bool
}

// backends resolves the per-call backend set from the toggles. Nil means
// every configured backend; the cloud toggle is ignored when no cloud
// adapter exists so the default flags work without one.
func (q queryParams) backends(a *app) ([]string, error) {
	if q.withCloud && q.withVector && q.withGraph {
		return nil, nil
	}

	var names []string
	if q.withCloud && a.cloud != nil {
		names = append(names, backend.CloudSearch)
	}
	if q.withVector {
		names = append(names, backend.Vector)
	}
	if q.withGraph {
		names = append(names, backend.Graph)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one backend must be enabled")
	}
	return names, nil
}

func runQuery(cmd *cobra.Command, query string, q queryParams) error {
	ctx := cmd.Context()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var deadline time.Time
	if q.timeout > 0 {
		deadline = time.Now().Add(q.timeout)
	}

	tctx, err := app.registry.Authorize(ctx, q.tenantID, []tenant.Scope{tenant.ScopeQuery}, deadline)
	if err != nil {
		return err
	}

	backends, err := q.backends(app)
	if err != nil {
		return err
	}

	synth, err := app.synthesizer()
	if err != nil {
		return err
	}

	resp, err := synth.Query(ctx, tctx, query, search.Options{
		Limit:    q.limit,
		Backends: backends,
	})
	if err != nil {
		return err
	}

	if q.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if q.showStats {
			return enc.Encode(map[string]any{
				"response": resp,
				"stats":    app.metrics.Snapshot(),
			})
		}
		return enc.Encode(resp)
	}

	renderResponse(cmd.OutOrStdout(), resp)
	if q.showStats {
		renderStats(cmd.OutOrStdout(), app.metrics.Snapshot())
	}
	return nil
}

// renderResponse prints the merged ranking in the text format.
func renderResponse(w io.Writer, resp *search.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results.")
	}

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.Key
		}
		fmt.Fprintf(w, "%2d. %s  (score %.3f)\n", i+1, title, r.Composite)
		if r.Source != "" {
			fmt.Fprintf(w, "    %s\n", r.Source)
		}
		if r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", r.Snippet)
		}

		names := make([]string, 0, len(r.Scores))
		for name := range r.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			s := r.Scores[name]
			parts = append(parts, fmt.Sprintf("%s #%d (%.2f)", name, s.Rank, s.Normalized))
		}
		fmt.Fprintf(w, "    via %s\n", strings.Join(parts, ", "))
	}

	if unavailable := resp.Unavailable(); len(unavailable) > 0 {
		fmt.Fprintf(w, "\nUnavailable backends: %s\n", strings.Join(unavailable, ", "))
	}
	fmt.Fprintf(w, "Took %s\n", resp.Elapsed.Round(time.Millisecond))
}

// renderStats prints the per-backend leg stats collected during this run.
func renderStats(w io.Writer, snap *telemetry.Snapshot) {
	fmt.Fprintln(w, "\nBackend stats:")
	for _, name := range snap.BackendNames() {
		stats := snap.Backends[name]
		fmt.Fprintf(w, "  %-12s queries=%d zero=%d unavailable=%.0f%%\n",
			name, stats.Queries, stats.ZeroResults, snap.UnavailabilityRate(name)*100)
	}
	if snap.IsolationViolations > 0 {
		fmt.Fprintf(w, "  isolation violations: %d\n", snap.IsolationViolations)
	}
}
