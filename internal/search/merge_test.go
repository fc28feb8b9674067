package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-rag/parallax/internal/backend"
)

func hit(name, source string, score float64) backend.SearchHit {
	return backend.SearchHit{
		Backend:    name,
		ExternalID: name + "-" + source,
		TenantID:   "acme",
		Score:      score,
		Source:     source,
		Title:      "title of " + source,
		Snippet:    "snippet of " + source,
	}
}

func TestMergeGroupsBySource(t *testing.T) {
	m := NewMerger(DefaultWeights())

	lists := map[string][]backend.SearchHit{
		backend.CloudSearch: {hit(backend.CloudSearch, "docs/a.md", 0.9)},
		backend.Vector:      {hit(backend.Vector, "docs/a.md", 0.6)},
		backend.Graph:       {hit(backend.Graph, "docs/a.md", 0.8)},
	}

	results := m.Merge(lists, 10)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "docs/a.md", r.Key)
	require.Len(t, r.Scores, 3)

	// Single-hit lists keep their raw scores: 0.45*0.9 + 0.30*0.8 + 0.25*0.6.
	assert.InDelta(t, 0.795, r.Composite, 0.0001)
	assert.InDelta(t, 0.9, r.Scores[backend.CloudSearch].Normalized, 0.0001)
	assert.InDelta(t, 0.8, r.Scores[backend.Graph].Normalized, 0.0001)
	assert.InDelta(t, 0.6, r.Scores[backend.Vector].Normalized, 0.0001)
	assert.Len(t, r.Hits, 3)
}

func TestMergeMinMaxNormalization(t *testing.T) {
	m := NewMerger(Weights{Vector: 1})

	lists := map[string][]backend.SearchHit{
		backend.Vector: {
			hit(backend.Vector, "a", 10.0),
			hit(backend.Vector, "b", 7.5),
			hit(backend.Vector, "c", 5.0),
		},
	}

	results := m.Merge(lists, 10)
	require.Len(t, results, 3)

	assert.InDelta(t, 1.0, results[0].Composite, 0.0001)
	assert.InDelta(t, 0.5, results[1].Composite, 0.0001)
	assert.InDelta(t, 0.0, results[2].Composite, 0.0001)
}

func TestMergeRenormalizesWeightsOverPresentBackends(t *testing.T) {
	m := NewMerger(DefaultWeights())

	// Graph returned nothing: cloud and vector weights are rescaled so a
	// result present in both still reaches a full composite.
	lists := map[string][]backend.SearchHit{
		backend.CloudSearch: {
			hit(backend.CloudSearch, "a", 2.0),
			hit(backend.CloudSearch, "b", 1.0),
		},
		backend.Vector: {
			hit(backend.Vector, "a", 0.9),
			hit(backend.Vector, "b", 0.4),
		},
		backend.Graph: {},
	}

	results := m.Merge(lists, 10)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Key)
	assert.InDelta(t, 1.0, results[0].Composite, 0.0001)
	assert.InDelta(t, 0.0, results[1].Composite, 0.0001)
}

func TestMergeTieBreakPrefersCloudThenGraph(t *testing.T) {
	m := NewMerger(Weights{CloudSearch: 1, Graph: 1, Vector: 1})

	lists := map[string][]backend.SearchHit{
		backend.CloudSearch: {hit(backend.CloudSearch, "cloud-only", 0.5)},
		backend.Graph:       {hit(backend.Graph, "graph-only", 0.5)},
		backend.Vector:      {hit(backend.Vector, "vector-only", 0.5)},
	}

	results := m.Merge(lists, 10)
	require.Len(t, results, 3)

	assert.Equal(t, "cloud-only", results[0].Key)
	assert.Equal(t, "graph-only", results[1].Key)
	assert.Equal(t, "vector-only", results[2].Key)
}

func TestMergeKeepsBestDuplicateFromOneBackend(t *testing.T) {
	m := NewMerger(Weights{Vector: 1})

	// Two chunks of the same document: only the better one counts.
	lists := map[string][]backend.SearchHit{
		backend.Vector: {
			hit(backend.Vector, "a", 0.9),
			hit(backend.Vector, "a", 0.3),
			hit(backend.Vector, "b", 0.6),
		},
	}

	results := m.Merge(lists, 10)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Key)
	assert.InDelta(t, 1.0, results[0].Composite, 0.0001)
	assert.Equal(t, 1, results[0].Scores[backend.Vector].Rank)
}

func TestMergeHonorsLimit(t *testing.T) {
	m := NewMerger(Weights{Vector: 1})

	lists := map[string][]backend.SearchHit{
		backend.Vector: {
			hit(backend.Vector, "a", 0.9),
			hit(backend.Vector, "b", 0.8),
			hit(backend.Vector, "c", 0.7),
		},
	}

	results := m.Merge(lists, 2)
	assert.Len(t, results, 2)
}

func TestMergeEmptyInput(t *testing.T) {
	m := NewMerger(DefaultWeights())
	assert.Empty(t, m.Merge(map[string][]backend.SearchHit{}, 10))
	assert.Empty(t, m.Merge(map[string][]backend.SearchHit{backend.Vector: {}}, 10))
}

func TestMergeDedupFallbackWithoutSource(t *testing.T) {
	m := NewMerger(Weights{Vector: 1, Graph: 1})

	noSource := backend.SearchHit{Backend: backend.Vector, ExternalID: "x1", TenantID: "acme", Score: 0.5}
	otherNoSource := backend.SearchHit{Backend: backend.Graph, ExternalID: "x1", TenantID: "acme", Score: 0.5}

	results := m.Merge(map[string][]backend.SearchHit{
		backend.Vector: {noSource},
		backend.Graph:  {otherNoSource},
	}, 10)

	// Without a shared source locator the hits stay separate entries.
	assert.Len(t, results, 2)
}

func TestWeightsValid(t *testing.T) {
	assert.True(t, DefaultWeights().Valid())
	assert.False(t, Weights{}.Valid())
	assert.False(t, Weights{CloudSearch: -1, Vector: 2}.Valid())
}
