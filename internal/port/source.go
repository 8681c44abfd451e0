package port

import (
	"context"

	"docrag/internal/domain"
)

// DocumentSource fetches the single document the index is built from.
type DocumentSource interface {
	// Fetch returns the document text and its validity key.
	Fetch(ctx context.Context, id string) (domain.Document, error)
}
