// Package graph implements the backend adapter for the temporal knowledge
// graph, stored as tenant-tagged node and edge tables in Postgres. Facts
// carry validity intervals: a superseded edge is invalidated, not deleted.
package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/errors"
)

// Node is an entity in the knowledge graph.
type Node struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// Edge is a directed, dated fact between two nodes. Source and Target
// reference node names within the same extraction.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Fact     string `json:"fact"`

	// ValidAt is when the fact became true. Zero means ingestion time.
	ValidAt time.Time `json:"valid_at,omitempty"`
}

// Extractor supplies the nodes and edges the adapter persists. Entity and
// relationship extraction is an external concern; this interface is the
// seam it plugs into.
type Extractor interface {
	Extract(ctx context.Context, doc *backend.Document, chunks []*backend.Chunk) ([]Node, []Edge, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, doc *backend.Document, chunks []*backend.Chunk) ([]Node, []Edge, error)

// Extract calls the function.
func (f ExtractorFunc) Extract(ctx context.Context, doc *backend.Document, chunks []*backend.Chunk) ([]Node, []Edge, error) {
	return f(ctx, doc, chunks)
}

// Metadata keys read by MetadataExtractor.
const (
	MetadataEntitiesKey  = "entities"
	MetadataRelationsKey = "relations"
)

// MetadataExtractor reads pre-extracted nodes and edges from document
// metadata: the upstream extraction pipeline attaches its output as JSON
// arrays under the "entities" and "relations" keys.
type MetadataExtractor struct{}

var _ Extractor = MetadataExtractor{}

// Extract decodes nodes and edges from the document's metadata.
// A document without extraction output yields no graph data, which the
// adapter reports as an empty (not failed) leg.
func (MetadataExtractor) Extract(_ context.Context, doc *backend.Document, _ []*backend.Chunk) ([]Node, []Edge, error) {
	var nodes []Node
	var edges []Edge

	if raw, ok := doc.Metadata[MetadataEntitiesKey]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			return nil, nil, errors.ClientError("decode entities metadata", err)
		}
	}
	if raw, ok := doc.Metadata[MetadataRelationsKey]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &edges); err != nil {
			return nil, nil, errors.ClientError("decode relations metadata", err)
		}
	}

	return nodes, edges, nil
}
