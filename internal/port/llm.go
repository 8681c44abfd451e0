package port

import (
	"context"

	"docrag/internal/domain"
)

// Generator turns a prompt into an answer. It is the only contact point with
// the generation step.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// PassageGenerator is implemented by generators that answer from the ranked
// passages directly instead of a rendered prompt.
type PassageGenerator interface {
	GenerateFromPassages(ctx context.Context, query string, passages []domain.ScoredChunk) (string, error)
}
