package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/llm"
	"docrag/internal/domain"
)

// recordingGenerator returns a fixed reply and keeps the last prompt.
type recordingGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func (g *recordingGenerator) ModelName() string { return "recording" }

func TestAnswerExtractive(t *testing.T) {
	s := loadedStack(t)
	a := NewAnswerer(s.retriever, llm.NewExtractive(), 8000, quietLogger())

	answer, err := a.Answer(context.Background(), "What prevents anemia?", 2)
	require.NoError(t, err)
	assert.Equal(t, "Iron deficiency causes anemia.", answer.Text)
	assert.Equal(t, "What prevents anemia?", answer.Query)
	assert.Len(t, answer.Chunks, 2)
}

func TestAnswerRendersPrompt(t *testing.T) {
	s := loadedStack(t)
	gen := &recordingGenerator{reply: "Iron."}
	a := NewAnswerer(s.retriever, gen, 0, quietLogger())

	answer, err := a.Answer(context.Background(), "What prevents anemia?", 2)
	require.NoError(t, err)
	assert.Equal(t, "Iron.", answer.Text)

	assert.Contains(t, gen.prompt, "[1] (score 0.354)\nIron deficiency causes anemia.")
	assert.Contains(t, gen.prompt, "[2] (score 0.000)\nVitamin C is found in citrus fruits.")
	assert.True(t, strings.HasSuffix(gen.prompt, "Question: What prevents anemia?\nAnswer:\n"))
	assert.Less(t, strings.Index(gen.prompt, "[1]"), strings.Index(gen.prompt, "[2]"))
}

func TestAnswerContextBudget(t *testing.T) {
	s := loadedStack(t)
	gen := &recordingGenerator{reply: "ok"}

	// room for the first passage only
	a := NewAnswerer(s.retriever, gen, 40, quietLogger())
	_, err := a.Answer(context.Background(), "What prevents anemia?", 2)
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, "Iron deficiency causes anemia.")
	assert.NotContains(t, gen.prompt, "[2]")

	// the first passage is truncated rather than dropped
	a = NewAnswerer(s.retriever, gen, 4, quietLogger())
	answer, err := a.Answer(context.Background(), "What prevents anemia?", 2)
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, "[1] (score 0.354)\nIron\n")
	assert.Len(t, answer.Chunks, 2, "the answer still reports every retrieved chunk")
}

func TestAnswerErrors(t *testing.T) {
	s := loadedStack(t)

	a := NewAnswerer(s.retriever, &recordingGenerator{}, 0, quietLogger())
	_, err := a.Answer(context.Background(), "", 2)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	boom := errors.New("rate limited")
	a = NewAnswerer(s.retriever, &recordingGenerator{err: boom}, 0, quietLogger())
	_, err = a.Answer(context.Background(), "anemia", 2)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "recording")
}

func TestRenderPromptNoPassages(t *testing.T) {
	prompt, err := RenderPrompt("q", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Question: q\nAnswer:")
}
