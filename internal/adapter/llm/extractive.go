package llm

import (
	"context"
	"strings"

	"docrag/internal/domain"
)

// NoAnswer is returned by Extractive when nothing was retrieved.
const NoAnswer = "The document does not contain an answer to this question."

// Extractive answers with the best-ranked passage. It needs no model and is
// the default generator.
type Extractive struct{}

// NewExtractive creates an extractive generator.
func NewExtractive() *Extractive {
	return &Extractive{}
}

// GenerateFromPassages implements port.PassageGenerator.
func (e *Extractive) GenerateFromPassages(ctx context.Context, query string, passages []domain.ScoredChunk) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, p := range passages {
		if p.Score > 0 {
			return strings.TrimSpace(p.Chunk.Text), nil
		}
	}
	return NoAnswer, nil
}

// Generate implements port.Generator for callers holding a rendered prompt:
// it returns the prompt's first passage block.
func (e *Extractive) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := strings.Split(prompt, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "[1] ") {
			var block []string
			for _, l := range lines[i+1:] {
				if l == "" {
					break
				}
				block = append(block, l)
			}
			if len(block) > 0 {
				return strings.Join(block, "\n"), nil
			}
		}
	}
	return NoAnswer, nil
}

// ModelName implements port.Generator.
func (e *Extractive) ModelName() string {
	return "extractive"
}
