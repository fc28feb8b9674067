package cloudsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parallax-rag/parallax/internal/errors"
)

// client is a thin HTTP JSON client over the cloud search REST API.
// All responses are classified into the shared error taxonomy here so the
// adapter above never sees raw HTTP statuses.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

func newClient(cfg Config) *client {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	// Deadlines come from per-request contexts, not a client-level timeout.
	return &client{
		http:    &http.Client{Transport: transport},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
	}
}

// do issues one authenticated JSON request and decodes the response into
// out (when non-nil).
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.ClientError("encode request", err)
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.ClientError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.FromHTTPResponse(resp, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.InternalError("decode response", err)
		}
	}
	return nil
}

func (c *client) createConnector(ctx context.Context, name string) (*connector, error) {
	var conn connector
	err := c.do(ctx, http.MethodPost, "/v1/connectors", createConnectorRequest{Name: name}, &conn)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (c *client) findConnector(ctx context.Context, name string) (*connector, error) {
	var list connectorList
	err := c.do(ctx, http.MethodGet, "/v1/connectors?name="+url.QueryEscape(name), nil, &list)
	if err != nil {
		return nil, err
	}
	for i := range list.Connectors {
		if list.Connectors[i].Name == name {
			return &list.Connectors[i], nil
		}
	}
	return nil, nil
}

func (c *client) getConnector(ctx context.Context, id string) (*connector, error) {
	var conn connector
	err := c.do(ctx, http.MethodGet, "/v1/connectors/"+url.PathEscape(id), nil, &conn)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (c *client) batchUpload(ctx context.Context, connectorID string, docs []uploadDocument) (*batchUploadResponse, error) {
	var out batchUploadResponse
	path := "/v1/connectors/" + url.PathEscape(connectorID) + "/documents:batch"
	if err := c.do(ctx, http.MethodPost, path, batchUploadRequest{Documents: docs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) query(ctx context.Context, req queryRequest) (*queryResponse, error) {
	var out queryResponse
	if err := c.do(ctx, http.MethodPost, "/v1/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}
