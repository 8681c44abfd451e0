package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
	"docrag/internal/port"
)

//go:embed templates/answer_prompt.txt
var answerPromptTemplate string

var answerPrompt = template.Must(template.New("answer").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(answerPromptTemplate))

// PromptData is the input of the answer prompt template.
type PromptData struct {
	Query    string
	Passages []domain.ScoredChunk
}

// Answerer runs retrieval and hands the ranked passages to a generator.
type Answerer struct {
	retriever       port.Retriever
	generator       port.Generator
	maxContextChars int
	logger          logrus.FieldLogger
}

// NewAnswerer creates an Answerer. maxContextChars bounds the passage text
// placed in the prompt (0 = unbounded).
func NewAnswerer(retriever port.Retriever, generator port.Generator, maxContextChars int, logger logrus.FieldLogger) *Answerer {
	return &Answerer{
		retriever:       retriever,
		generator:       generator,
		maxContextChars: maxContextChars,
		logger:          logger.WithField("component", "answerer"),
	}
}

// Answer retrieves topK passages for query and generates an answer from
// them. The returned Answer carries the passages that were retrieved.
func (a *Answerer) Answer(ctx context.Context, query string, topK int) (domain.Answer, error) {
	results, err := a.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return domain.Answer{}, err
	}

	passages := a.fitContext(results)

	var text, prompt string
	if pg, ok := a.generator.(port.PassageGenerator); ok {
		text, err = pg.GenerateFromPassages(ctx, query, passages)
	} else {
		prompt, err = RenderPrompt(query, passages)
		if err != nil {
			return domain.Answer{}, err
		}
		text, err = a.generator.Generate(ctx, prompt)
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generation with %s failed: %w", a.generator.ModelName(), err)
	}

	a.logger.WithFields(logrus.Fields{
		"passages":     len(results),
		"prompt_chars": len(prompt),
		"generator":    a.generator.ModelName(),
	}).Debug("answer generated")

	return domain.Answer{Query: query, Text: text, Chunks: results}, nil
}

// fitContext keeps passages in rank order until the character budget is
// spent. The first passage is always kept, truncated if necessary.
func (a *Answerer) fitContext(results []domain.ScoredChunk) []domain.ScoredChunk {
	if a.maxContextChars <= 0 {
		return results
	}

	var (
		out  []domain.ScoredChunk
		used int
	)
	for _, r := range results {
		n := utf8.RuneCountInString(r.Chunk.Text)
		if used+n > a.maxContextChars {
			if len(out) == 0 {
				r.Chunk.Text = string([]rune(r.Chunk.Text)[:a.maxContextChars])
				out = append(out, r)
			}
			break
		}
		out = append(out, r)
		used += n
	}
	return out
}

// RenderPrompt renders the answer prompt for query and passages.
func RenderPrompt(query string, passages []domain.ScoredChunk) (string, error) {
	var buf bytes.Buffer
	if err := answerPrompt.Execute(&buf, PromptData{Query: query, Passages: passages}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
