package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parallax-rag/parallax/internal/errors"
)

// HTTPConfig configures the HTTP embedding client.
type HTTPConfig struct {
	// Endpoint is the embedding service URL (e.g., an Ollama-compatible
	// /api/embeddings endpoint).
	Endpoint string

	// Model is the embedding model name sent with each request.
	Model string

	// Dimensions is the expected embedding width.
	Dimensions int

	// Timeout bounds each embedding request.
	Timeout time.Duration

	// PoolSize caps idle connections to the embedding service.
	PoolSize int
}

// HTTPEmbedder calls a remote embedding service over HTTP JSON.
type HTTPEmbedder struct {
	client *http.Client
	cfg    HTTPConfig
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an HTTP embedding client with a pooled transport.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ClientError("embedding endpoint is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client-level timeout: per-request contexts carry the deadline.
	return &HTTPEmbedder{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding for one text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, errors.ClientError("encode embedding request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.ClientError("build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.FromHTTPResponse(resp, string(body))
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.InternalError("decode embedding response", err)
	}

	if e.cfg.Dimensions > 0 && len(out.Embedding) != e.cfg.Dimensions {
		return nil, errors.ClientError(
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d",
				len(out.Embedding), e.cfg.Dimensions), nil)
	}

	return out.Embedding, nil
}

// Dimensions returns the configured embedding width.
func (e *HTTPEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}
