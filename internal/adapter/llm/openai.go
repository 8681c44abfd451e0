// Package llm implements port.Generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a careful assistant. Answer from the supplied passages only and keep the answer short."

// Provider defaults for OpenAI-compatible chat endpoints.
var providers = map[string]struct {
	baseURL   string
	keyEnvVar string
}{
	"openai": {"https://api.openai.com/v1", "OPENAI_API_KEY"},
	"ollama": {"http://localhost:11434/v1", ""},
}

// Config configures a chat-completion generator.
type Config struct {
	Provider    string
	Model       string
	APIKeyEnv   string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Stats tracks generator usage.
type Stats struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
}

// OpenAI generates answers with an OpenAI-compatible chat completion API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int

	mu    sync.Mutex
	stats Stats
}

// NewOpenAI creates a generator for cfg.Provider. Providers without a
// default key variable (ollama) run without a key.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	p, ok := providers[cfg.Provider]
	if !ok && cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider: %s (set base_url for custom endpoints)", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, errors.New("generation model is not set")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}

	keyEnv := p.keyEnvVar
	if cfg.APIKeyEnv != "" && p.keyEnvVar != "" {
		keyEnv = cfg.APIKeyEnv
	}
	apiKey := ""
	if keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", keyEnv)
		}
	}
	if apiKey == "" {
		apiKey = cfg.Provider
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate implements port.Generator.
func (g *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from LLM")
	}

	g.mu.Lock()
	g.stats.Calls++
	g.stats.PromptTokens += resp.Usage.PromptTokens
	g.stats.CompletionTokens += resp.Usage.CompletionTokens
	g.mu.Unlock()

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ModelName implements port.Generator.
func (g *OpenAI) ModelName() string {
	return g.model
}

// Stats returns usage counters.
func (g *OpenAI) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
