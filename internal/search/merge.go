package search

import (
	"sort"

	"github.com/parallax-rag/parallax/internal/backend"
)

// DedupKeyFunc derives the grouping key for a hit. Hits with the same
// key collapse into one RankedResult.
type DedupKeyFunc func(backend.SearchHit) string

// SourceDedupKey groups by the document's source locator, falling back
// to the backend-qualified external id when the locator is empty.
func SourceDedupKey(hit backend.SearchHit) string {
	if hit.Source != "" {
		return hit.Source
	}
	return hit.Backend + ":" + hit.ExternalID
}

// Merger combines per-backend result lists into one composite ranking.
//
// Each backend's scores are min-max normalized within that backend's
// list before weighting, so a backend with a generous score scale does
// not dominate the merge. When a backend's scores carry no spread (one
// hit, or all hits equal) the raw score is clamped to [0,1] instead,
// preserving its relevance signal.
type Merger struct {
	Weights  Weights
	DedupKey DedupKeyFunc
}

// NewMerger creates a merger with the given weights. A zero Weights
// value falls back to the defaults.
func NewMerger(weights Weights) *Merger {
	if !weights.Valid() {
		weights = DefaultWeights()
	}
	return &Merger{
		Weights:  weights,
		DedupKey: SourceDedupKey,
	}
}

// Merge groups and scores the hits from every backend. Lists are keyed
// by backend name; each list is assumed to be in that backend's rank
// order. The result is sorted by composite score descending with
// deterministic tie-breaking.
func (m *Merger) Merge(lists map[string][]backend.SearchHit, limit int) []RankedResult {
	dedup := m.DedupKey
	if dedup == nil {
		dedup = SourceDedupKey
	}

	// Renormalize weights over the backends that returned anything.
	var weightSum float64
	for name, hits := range lists {
		if len(hits) > 0 {
			weightSum += m.Weights.For(name)
		}
	}
	if weightSum == 0 {
		return []RankedResult{}
	}

	grouped := make(map[string]*RankedResult)
	var order []string

	for name, hits := range lists {
		if len(hits) == 0 {
			continue
		}
		weight := m.Weights.For(name) / weightSum
		normalized := normalizeScores(hits)

		for rank, hit := range hits {
			key := dedup(hit)
			entry, ok := grouped[key]
			if !ok {
				entry = &RankedResult{
					Key:    key,
					Scores: make(map[string]BackendScore),
				}
				grouped[key] = entry
				order = append(order, key)
			}

			// A backend may return the same document more than once
			// (e.g. several chunks); keep its best-ranked hit.
			if prev, seen := entry.Scores[name]; seen && prev.Normalized >= normalized[rank] {
				continue
			}
			if prev, seen := entry.Scores[name]; seen {
				entry.Composite -= weight * prev.Normalized
			}

			entry.Scores[name] = BackendScore{
				Raw:        hit.Score,
				Normalized: normalized[rank],
				Rank:       rank + 1,
			}
			entry.Composite += weight * normalized[rank]
			entry.Hits = append(entry.Hits, hit)
			m.fillDisplay(entry, hit)
		}
	}

	results := make([]RankedResult, 0, len(grouped))
	for _, key := range order {
		results = append(results, *grouped[key])
	}

	sort.SliceStable(results, func(i, j int) bool {
		return compare(&results[i], &results[j])
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// fillDisplay takes title, snippet, and source from the contributing
// hit with the highest-priority backend.
func (m *Merger) fillDisplay(entry *RankedResult, hit backend.SearchHit) {
	if entry.Source == "" && hit.Source != "" {
		entry.Source = hit.Source
	}
	if entry.Title == "" && hit.Title != "" {
		entry.Title = hit.Title
	}
	if entry.Snippet == "" && hit.Snippet != "" {
		entry.Snippet = hit.Snippet
	}
}

// normalizeScores min-max normalizes the scores of one backend list.
// With no spread, scores are clamped into [0,1] rather than flattened
// to a constant.
func normalizeScores(hits []backend.SearchHit) []float64 {
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}

	out := make([]float64, len(hits))
	if max == min {
		for i, h := range hits {
			out[i] = clamp01(h.Score)
		}
		return out
	}
	for i, h := range hits {
		out[i] = (h.Score - min) / (max - min)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// compare returns true when a ranks before b.
//
// Priority:
//  1. Higher composite score
//  2. Higher-priority backend among contributors (cloud > graph > vector)
//  3. Better rank within contributing backends
//  4. Lexicographically smaller key (deterministic)
func compare(a, b *RankedResult) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if pa, pb := a.bestBackend(), b.bestBackend(); pa != pb {
		return pa < pb
	}
	if ra, rb := a.bestRank(), b.bestRank(); ra != rb {
		return ra < rb
	}
	return a.Key < b.Key
}
