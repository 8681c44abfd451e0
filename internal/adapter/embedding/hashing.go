package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"docrag/internal/port"
)

// DefaultHashingDimension is the bucket count used when none is configured.
const DefaultHashingDimension = 1024

// HashingModel is an offline embedding model: every term is hashed into one
// of dim buckets and weighted by 1+ln(tf). It needs no network and no
// weights, so it also serves tests and air-gapped deployments.
type HashingModel struct {
	dim       int
	name      string
	tokenizer port.Tokenizer
}

func NewHashingModel(name string, dim int, tokenizer port.Tokenizer) *HashingModel {
	if name == "" {
		name = "hashing-v1"
	}
	return &HashingModel{
		dim:       dim,
		name:      name,
		tokenizer: tokenizer,
	}
}

func (m *HashingModel) Load(ctx context.Context) error {
	if m.dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", m.dim)
	}
	if m.tokenizer == nil {
		return fmt.Errorf("no tokenizer configured")
	}
	return ctx.Err()
}

func (m *HashingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = m.embed(text)
	}
	return embeddings, nil
}

func (m *HashingModel) embed(text string) []float32 {
	counts := make(map[int]int)
	for _, term := range m.tokenizer.Tokenize(text) {
		counts[m.bucket(term)]++
	}

	vec := make([]float32, m.dim)
	for idx, tf := range counts {
		vec[idx] = float32(1 + math.Log(float64(tf)))
	}
	return vec
}

func (m *HashingModel) bucket(term string) int {
	h := fnv.New64a()
	h.Write([]byte(term))
	return int(h.Sum64() % uint64(m.dim))
}

func (m *HashingModel) Dimension() int {
	return m.dim
}

func (m *HashingModel) ModelName() string {
	return m.name
}
