package preflight

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/parallax-rag/parallax/internal/logging"
)

const probeTimeout = 5 * time.Second

// CheckCatalog verifies the Postgres catalog is reachable. It only
// probes the TCP endpoint; credentials are validated on first use.
func (c *Checker) CheckCatalog(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "catalog",
		Required: true,
	}

	addr := net.JoinHostPort(c.cfg.Catalog.Host, fmt.Sprintf("%d", c.cfg.Catalog.Port))
	result.Details = fmt.Sprintf("postgres at %s, database %q", addr, c.cfg.Catalog.Database)

	d := net.Dialer{Timeout: probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreachable: %v", err)
		return result
	}
	_ = conn.Close()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("reachable at %s", addr)
	return result
}

// CheckEmbeddings verifies the embedding provider answers HTTP
// requests. The vector leg cannot embed queries without it.
func (c *Checker) CheckEmbeddings(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embeddings",
		Required: true,
	}

	host := c.cfg.Embeddings.Host
	result.Details = fmt.Sprintf("model %q, %d dimensions", c.cfg.Embeddings.Model, c.cfg.Embeddings.Dimensions)

	status, err := c.probeHTTP(ctx, host)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreachable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s answered with HTTP %d", host, status)
	return result
}

// CheckCloudSearch verifies the managed search service when one is
// configured. The system degrades to vector and graph legs without it,
// so this check never fails the run.
func (c *Checker) CheckCloudSearch(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "cloudsearch",
		Required: false,
	}

	base := c.cfg.CloudSearch.BaseURL
	if base == "" {
		result.Status = StatusWarn
		result.Message = "not configured (cloud leg disabled)"
		return result
	}

	status, err := c.probeHTTP(ctx, base)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unreachable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s answered with HTTP %d", base, status)
	return result
}

// CheckLogDir verifies the log directory is writable.
func (c *Checker) CheckLogDir() CheckResult {
	result := CheckResult{
		Name:     "log_dir",
		Required: false,
	}

	dir := logging.DefaultLogDir()
	if c.cfg.Logging.File != "" {
		dir = filepath.Dir(c.cfg.Logging.File)
	}
	result.Details = fmt.Sprintf("log directory: %s", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".parallax-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s is writable", dir)
	return result
}

// probeHTTP issues a GET against the base URL and reports the status
// code. Any HTTP answer counts as reachable.
func (c *Checker) probeHTTP(ctx context.Context, baseURL string) (int, error) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}
