package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-rag/parallax/internal/errors"
)

func TestHTTPEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 3})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimensions())
}

func TestHTTPEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1}})
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Dimensions: 768})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.Equal(t, errors.ClassClient, errors.GetClass(err))
}

func TestHTTPEmbedder_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.Equal(t, errors.ClassTransient, errors.GetClass(err))
}

func TestNewHTTPEmbedder_RequiresEndpoint(t *testing.T) {
	_, err := NewHTTPEmbedder(HTTPConfig{})
	assert.Error(t, err)
}
