package preflight

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-rag/parallax/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "parallax.log")
	return cfg
}

func TestCheckCatalog_Reachable(t *testing.T) {
	// Given: a listener standing in for Postgres
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	cfg.Catalog.Host = host
	cfg.Catalog.Port, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	// When: checking the catalog
	c := New(cfg)
	result := c.CheckCatalog(context.Background())

	// Then: the check passes
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
}

func TestCheckCatalog_Unreachable(t *testing.T) {
	// Given: a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	cfg.Catalog.Host = host
	cfg.Catalog.Port, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	// When: checking the catalog
	c := New(cfg)
	result := c.CheckCatalog(context.Background())

	// Then: the check fails and is critical
	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestCheckEmbeddings_Reachable(t *testing.T) {
	// Given: an HTTP server standing in for the embedding provider
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Embeddings.Host = srv.URL

	// When: checking embeddings
	c := New(cfg)
	result := c.CheckEmbeddings(context.Background())

	// Then: the check passes
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "200")
}

func TestCheckCloudSearch_NotConfigured(t *testing.T) {
	// Given: no cloud search base URL
	cfg := testConfig(t)
	cfg.CloudSearch.BaseURL = ""

	// When: checking cloud search
	c := New(cfg)
	result := c.CheckCloudSearch(context.Background())

	// Then: it warns but is not critical
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestCheckCloudSearch_Unreachable(t *testing.T) {
	// Given: a cloud search URL nothing answers
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	cfg := testConfig(t)
	cfg.CloudSearch.BaseURL = srv.URL

	// When: checking cloud search
	c := New(cfg)
	result := c.CheckCloudSearch(context.Background())

	// Then: it warns but never fails the run
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestCheckLogDir_Writable(t *testing.T) {
	cfg := testConfig(t)

	c := New(cfg)
	result := c.CheckLogDir()

	assert.Equal(t, StatusPass, result.Status)
}

func TestSummaryStatus(t *testing.T) {
	c := New(testConfig(t))

	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{
			name: "all passing",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusPass},
			},
			want: "ready",
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn},
			},
			want: "ready_with_warnings",
		},
		{
			name: "non-critical failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			want: "ready_with_warnings",
		},
		{
			name: "critical failure",
			results: []CheckResult{
				{Status: StatusFail, Required: true},
			},
			want: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.SummaryStatus(tt.results))
		})
	}
}

func TestPrintResults(t *testing.T) {
	// Given: a checker with a buffer output
	buf := &bytes.Buffer{}
	c := New(testConfig(t), WithOutput(buf), WithVerbose(true))

	results := []CheckResult{
		{Name: "catalog", Status: StatusPass, Message: "reachable", Details: "postgres", Required: true},
		{Name: "cloudsearch", Status: StatusWarn, Message: "not configured"},
	}

	// When: printing
	c.PrintResults(results)

	// Then: the report includes statuses, details, and summary
	out := buf.String()
	assert.Contains(t, out, "[PASS] catalog: reachable")
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "[WARN] cloudsearch: not configured")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s):")
}
