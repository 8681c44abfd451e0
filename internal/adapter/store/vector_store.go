package store

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"docrag/internal/domain"
)

// VectorStore holds the chunk sequence and its embedding matrix in memory and
// answers cosine similarity queries by linear scan. The pair is replaced as a
// whole by Build, so readers never see a partially installed table.
type VectorStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
	matrix domain.EmbeddingMatrix
	norms  []float64
	dim    int
}

// NewVectorStore creates an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// Build installs a fresh chunk/matrix pair, replacing any prior state. The
// store takes ownership of both slices. Rows holding NaN or Inf are rejected.
func (s *VectorStore) Build(chunks []domain.Chunk, matrix domain.EmbeddingMatrix) error {
	if len(chunks) != matrix.Rows() {
		return fmt.Errorf("%w: %d chunks but %d matrix rows", domain.ErrCorruptArtifact, len(chunks), matrix.Rows())
	}

	dim := matrix.Dim()
	norms := make([]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has dimension %d, expected %d", domain.ErrCorruptArtifact, i, len(row), dim)
		}
		if chunks[i].Index != i {
			return fmt.Errorf("%w: chunk at position %d has index %d", domain.ErrCorruptArtifact, i, chunks[i].Index)
		}
		norms[i] = norm(row)
		if math.IsNaN(norms[i]) || math.IsInf(norms[i], 0) {
			return fmt.Errorf("%w: row %d has non-finite values", domain.ErrCorruptArtifact, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
	s.matrix = matrix
	s.norms = norms
	s.dim = dim
	return nil
}

// Search returns the k chunks most similar to query by cosine similarity,
// best first; equal scores keep chunk order. Rows with zero norm never
// match, and a zero query matches nothing. k larger than the store is
// clamped.
func (s *VectorStore) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query dimension %d, expected %d", domain.ErrInvalidArgument, len(query), s.dim)
	}

	qnorm := norm(query)
	if math.IsNaN(qnorm) || math.IsInf(qnorm, 0) {
		return nil, fmt.Errorf("%w: query has non-finite values", domain.ErrInvalidArgument)
	}
	if qnorm == 0 {
		return []domain.ScoredChunk{}, nil
	}

	scores := make([]domain.ScoredChunk, 0, len(s.chunks))
	for i, row := range s.matrix {
		if s.norms[i] == 0 {
			continue
		}
		scores = append(scores, domain.ScoredChunk{
			Chunk: s.chunks[i],
			Score: dot(query, row) / (qnorm * s.norms[i]),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Chunk.Index < scores[j].Chunk.Index
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Len returns the number of chunks in the store.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dimension returns the row width, 0 when empty.
func (s *VectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Save persists the current table to path. Count and Dimension in meta are
// filled from the store.
func (s *VectorStore) Save(path string, meta ArtifactMeta) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := &Artifact{
		Meta:   meta,
		Chunks: s.chunks,
		Matrix: s.matrix,
	}
	a.Meta.Count = len(s.chunks)
	if s.dim > 0 {
		a.Meta.Dimension = s.dim
	}

	return WriteArtifact(path, a)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
