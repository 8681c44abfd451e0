package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestExtractivePicksTopPassage(t *testing.T) {
	passages := []domain.ScoredChunk{
		{Chunk: domain.Chunk{Index: 1, Text: "Iron deficiency causes anemia."}, Score: 0.35},
		{Chunk: domain.Chunk{Index: 0, Text: "Vitamin C is found in citrus fruits."}, Score: 0},
	}
	got, err := NewExtractive().GenerateFromPassages(context.Background(), "What prevents anemia?", passages)
	require.NoError(t, err)
	assert.Equal(t, "Iron deficiency causes anemia.", got)
}

func TestExtractiveNothingRelevant(t *testing.T) {
	passages := []domain.ScoredChunk{{Chunk: domain.Chunk{Text: "unrelated"}, Score: 0}}
	got, err := NewExtractive().GenerateFromPassages(context.Background(), "q", passages)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)

	got, err = NewExtractive().GenerateFromPassages(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestExtractiveGenerateFromPrompt(t *testing.T) {
	prompt := "Intro line\n\n[1] (score 0.900)\nFirst passage\ncontinues\n\n[2] (score 0.100)\nSecond\n\nQuestion: q\nAnswer:\n"
	got, err := NewExtractive().Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "First passage\ncontinues", got)

	got, err = NewExtractive().Generate(context.Background(), "Question: q\nAnswer:\n")
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestOpenAIGenerate(t *testing.T) {
	var gotModel string
	var gotMessages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = req.Model
		gotMessages = len(req.Messages)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "  Iron.  "}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14},
		})
	}))
	defer srv.Close()

	g, err := NewOpenAI(Config{Provider: "ollama", Model: "llama3", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "What prevents anemia?")
	require.NoError(t, err)
	assert.Equal(t, "Iron.", got)
	assert.Equal(t, "llama3", gotModel)
	assert.Equal(t, 2, gotMessages)
	assert.Equal(t, Stats{Calls: 1, PromptTokens: 12, CompletionTokens: 2}, g.Stats())
	assert.Equal(t, "llama3", g.ModelName())
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewOpenAI(Config{Provider: "ollama", Model: "llama3", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "q")
	assert.Error(t, err)
}

func TestNewOpenAIConfigErrors(t *testing.T) {
	t.Setenv("DOCRAG_TEST_MISSING_KEY", "")

	_, err := NewOpenAI(Config{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "DOCRAG_TEST_MISSING_KEY"})
	assert.Error(t, err)

	_, err = NewOpenAI(Config{Provider: "mystery", Model: "m"})
	assert.Error(t, err)

	_, err = NewOpenAI(Config{Provider: "ollama"})
	assert.Error(t, err)

	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	_, err = NewOpenAI(Config{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "DOCRAG_TEST_KEY"})
	assert.NoError(t, err)
}
