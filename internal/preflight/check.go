// Package preflight validates the environment Parallax depends on:
// the Postgres catalog, the embedding provider, the cloud search
// service, and the log directory.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parallax-rag/parallax/internal/config"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks against the configured
// backends.
type Checker struct {
	cfg     *config.Config
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker for the given configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckCatalog(ctx),
		c.CheckEmbeddings(ctx),
		c.CheckCloudSearch(ctx),
		c.CheckLogDir(),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "Parallax System Check")
	_, _ = fmt.Fprintln(c.output, "=====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}
