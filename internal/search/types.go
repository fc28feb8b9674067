// Package search runs hybrid queries across the retrieval backends and
// merges their backend-local rankings into one composite ranking.
package search

import (
	"time"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
)

// Weights are the per-backend contribution weights for the composite
// score. They are renormalized over the backends that actually returned
// results, so a missing backend never deflates everyone's scores.
type Weights struct {
	CloudSearch float64 `yaml:"cloudsearch" json:"cloudsearch"`
	Graph       float64 `yaml:"graph" json:"graph"`
	Vector      float64 `yaml:"vector" json:"vector"`
}

// DefaultWeights favors the managed search service, then the graph,
// then raw vector similarity.
func DefaultWeights() Weights {
	return Weights{
		CloudSearch: 0.45,
		Graph:       0.30,
		Vector:      0.25,
	}
}

// Valid reports whether every weight is non-negative and at least one
// is positive.
func (w Weights) Valid() bool {
	if w.CloudSearch < 0 || w.Graph < 0 || w.Vector < 0 {
		return false
	}
	return w.CloudSearch+w.Graph+w.Vector > 0
}

// For returns the weight for a backend name.
func (w Weights) For(name string) float64 {
	switch name {
	case backend.CloudSearch:
		return w.CloudSearch
	case backend.Graph:
		return w.Graph
	case backend.Vector:
		return w.Vector
	default:
		return 0
	}
}

// BackendScore preserves one backend's view of a merged result.
type BackendScore struct {
	// Raw is the backend-local score as returned.
	Raw float64 `json:"raw"`

	// Normalized is the score after per-backend min-max normalization.
	Normalized float64 `json:"normalized"`

	// Rank is the 1-indexed position in that backend's result list.
	Rank int `json:"rank"`
}

// RankedResult is one entry of the merged ranking. Results sharing a
// dedup key are grouped into a single entry that keeps every backend's
// contribution visible for citation.
type RankedResult struct {
	// Key is the dedup key the entry was grouped under.
	Key string `json:"key"`

	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`

	// Composite is the weighted combination of normalized scores.
	Composite float64 `json:"composite"`

	// Scores maps backend name to that backend's contribution.
	Scores map[string]BackendScore `json:"scores"`

	// Hits are the raw per-backend hits grouped into this entry.
	Hits []backend.SearchHit `json:"-"`
}

// bestBackend returns the highest-priority backend contributing to r.
func (r *RankedResult) bestBackend() int {
	best := 1 << 30
	for name := range r.Scores {
		if p := backend.Priority(name); p < best {
			best = p
		}
	}
	return best
}

// bestRank returns the best (lowest) rank r holds in any backend.
func (r *RankedResult) bestRank() int {
	best := 1 << 30
	for _, s := range r.Scores {
		if s.Rank < best {
			best = s.Rank
		}
	}
	return best
}

// BackendOutcome reports how one backend leg of a query went.
type BackendOutcome struct {
	Backend string        `json:"backend"`
	OK      bool          `json:"ok"`
	Hits    int           `json:"hits"`
	Latency time.Duration `json:"latency"`

	// Class and Error are set when the leg failed.
	Class errors.Class `json:"class,omitempty"`
	Error string       `json:"error,omitempty"`
}

// Response is the full result of one hybrid query.
type Response struct {
	Results  []RankedResult   `json:"results"`
	Outcomes []BackendOutcome `json:"outcomes"`
	Elapsed  time.Duration    `json:"elapsed"`
}

// Unavailable lists the backends whose leg failed.
func (r *Response) Unavailable() []string {
	var names []string
	for _, o := range r.Outcomes {
		if !o.OK {
			names = append(names, o.Backend)
		}
	}
	return names
}
