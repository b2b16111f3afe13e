// Package embed turns text into fixed-dimension vectors for similarity
// search.
package embed

import "context"

// Dimension is the embedding vector size. The pgvector columns are
// declared with this dimension; changing it requires a migration.
const Dimension = 1536

// Embedder produces embedding vectors of length Dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
