package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Retrieve returns the top-k chunks for the query, best first.
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}
