package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/tenant"
)

// stubAdapter satisfies backend.Adapter for flag-resolution tests.
type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) Capabilities() backend.Capabilities {
	return backend.Capabilities{TenantScopedQueries: true}
}
func (s stubAdapter) Ingest(ctx context.Context, tctx tenant.Context, doc *backend.Document, chunks []*backend.Chunk) (*backend.Record, error) {
	return nil, nil
}
func (s stubAdapter) Query(ctx context.Context, tctx tenant.Context, query string, limit int) ([]backend.SearchHit, error) {
	return nil, nil
}
func (s stubAdapter) Healthy(ctx context.Context) bool { return true }

func TestQueryParams_BackendToggles(t *testing.T) {
	withCloud := &app{cloud: stubAdapter{name: backend.CloudSearch}}
	withoutCloud := &app{}

	t.Run("all enabled means no restriction", func(t *testing.T) {
		q := queryParams{withCloud: true, withVector: true, withGraph: true}
		names, err := q.backends(withCloud)
		require.NoError(t, err)
		assert.Nil(t, names)
	})

	t.Run("disabling one leg restricts the set", func(t *testing.T) {
		q := queryParams{withCloud: true, withVector: true, withGraph: false}
		names, err := q.backends(withCloud)
		require.NoError(t, err)
		assert.Equal(t, []string{backend.CloudSearch, backend.Vector}, names)
	})

	t.Run("unconfigured cloud is dropped from the set", func(t *testing.T) {
		q := queryParams{withCloud: true, withVector: true, withGraph: false}
		names, err := q.backends(withoutCloud)
		require.NoError(t, err)
		assert.Equal(t, []string{backend.Vector}, names)
	})

	t.Run("disabling everything is an error", func(t *testing.T) {
		q := queryParams{withCloud: true, withVector: false, withGraph: false}
		_, err := q.backends(withoutCloud)
		require.Error(t, err)
	})
}

func TestQueryCmd_HasBackendToggleFlags(t *testing.T) {
	cmd := newQueryCmd()

	for _, name := range []string{"cloud", "vector", "graph"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "missing flag --%s", name)
		assert.Equal(t, "true", flag.DefValue)
	}
}
