package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run diagnostics against the configured backends.

Checks:
  - Postgres catalog reachability
  - Embedding provider reachability
  - Cloud search service reachability (warning only)
  - Log directory writability

The cloud search check never fails the run: queries degrade to the
vector and graph legs when the service is absent.`,
		Example: `  # Run diagnostics
  parallax doctor

  # Verbose output with details
  parallax doctor --verbose

  # JSON output for scripting
  parallax doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx := cmd.Context()

	checker := preflight.New(cfg,
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"status": checker.SummaryStatus(results),
			"checks": results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}
