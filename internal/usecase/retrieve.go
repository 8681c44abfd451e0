package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

// Retriever answers queries against the vector table managed by a
// CacheManager.
type Retriever struct {
	manager    *CacheManager
	embedder   *embedding.Service
	store      *store.VectorStore
	queryCache *cache.QueryCache
	minScore   float64 // drop results below this score (0 = disabled)
	logger     logrus.FieldLogger

	seenGeneration atomic.Uint64
}

// NewRetriever creates a retriever. queryCache may be nil.
func NewRetriever(
	manager *CacheManager,
	embedder *embedding.Service,
	vectors *store.VectorStore,
	queryCache *cache.QueryCache,
	minScore float64,
	logger logrus.FieldLogger,
) *Retriever {
	return &Retriever{
		manager:    manager,
		embedder:   embedder,
		store:      vectors,
		queryCache: queryCache,
		minScore:   minScore,
		logger:     logger.WithField("component", "retriever"),
	}
}

// Retrieve returns up to topK chunks ranked by cosine similarity to query.
// It fails with domain.ErrInvalidArgument for an empty query or a
// non-positive topK, and with domain.ErrServiceUnavailable while the table
// is not loaded.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if err := r.manager.Ready(); err != nil {
		return nil, err
	}

	generation := r.manager.Generation()
	if r.seenGeneration.Swap(generation) != generation {
		// entries of older tables can never hit again
		r.queryCache.Invalidate()
	}
	if results, ok := r.queryCache.Get(query, topK, generation); ok {
		return results, nil
	}

	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	if r.minScore > 0 {
		results = filterByThreshold(results, r.minScore)
	}

	r.queryCache.Put(query, topK, generation, results)
	r.logger.WithFields(logrus.Fields{
		"top_k":   topK,
		"results": len(results),
	}).Debug("query served")
	return results, nil
}

// ContextText joins the chunk texts in ranked order, separated by blank
// lines.
func ContextText(results []domain.ScoredChunk) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}

func filterByThreshold(results []domain.ScoredChunk, min float64) []domain.ScoredChunk {
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= min {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
