// Package embed provides the query-time embedding client. Chunk embeddings
// arrive pre-computed from the external chunker/embedder; this package only
// embeds query text so the vector leg can search against them.
package embed

import (
	"context"
)

// Embedder generates an embedding vector for a piece of text.
type Embedder interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int
}
