package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint. A zero
// Dimension means the model's native width.
type OpenAIConfig struct {
	Model     string
	APIKeyEnv string
	BaseURL   string
	Dimension int
	Timeout   time.Duration // per request
}

// OpenAIModel embeds text through an OpenAI-compatible API (OpenAI, Ollama,
// Jina, ...). The client is created in Load.
type OpenAIModel struct {
	cfg      OpenAIConfig
	apiKey   string
	requires bool
	shorten  bool
	client   *openai.Client
}

func NewOpenAIModel(cfg OpenAIConfig) *OpenAIModel {
	m := &OpenAIModel{requires: true}
	m.configure(cfg)
	return m
}

// NewOllamaModel talks to a local Ollama server; no API key is needed.
func NewOllamaModel(cfg OpenAIConfig) *OpenAIModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	m := &OpenAIModel{apiKey: "ollama"}
	m.configure(cfg)
	return m
}

// configure fills in the native dimension when none is set. An explicit
// dimension on a text-embedding-3 model is sent with each request, since
// those models can shorten their output.
func (m *OpenAIModel) configure(cfg OpenAIConfig) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = knownDimension(cfg.Model)
	} else {
		m.shorten = strings.HasPrefix(cfg.Model, "text-embedding-3")
	}
	m.cfg = cfg
}

func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3", "mxbai-embed-large":
		return 1024
	case "nomic-embed-text":
		return 768
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

// Load creates the client and embeds a probe string to check the model is
// reachable and produces the configured dimension.
func (m *OpenAIModel) Load(ctx context.Context) error {
	if m.requires {
		m.apiKey = os.Getenv(m.cfg.APIKeyEnv)
		if m.apiKey == "" {
			return fmt.Errorf("API key not found in environment variable: %s", m.cfg.APIKeyEnv)
		}
	}

	clientCfg := openai.DefaultConfig(m.apiKey)
	if m.cfg.BaseURL != "" {
		clientCfg.BaseURL = m.cfg.BaseURL
	}
	if m.cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: m.cfg.Timeout}
	}
	m.client = openai.NewClientWithConfig(clientCfg)

	probe, err := m.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		m.client = nil
		return fmt.Errorf("probe request failed: %w", err)
	}
	if len(probe) != 1 || len(probe[0]) != m.cfg.Dimension {
		got := 0
		if len(probe) == 1 {
			got = len(probe[0])
		}
		m.client = nil
		return fmt.Errorf("model %s returned dimension %d, configured %d", m.cfg.Model, got, m.cfg.Dimension)
	}
	return nil
}

func (m *OpenAIModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.client == nil {
		return nil, fmt.Errorf("model %s is not loaded", m.cfg.Model)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.cfg.Model),
	}
	if m.shorten {
		req.Dimensions = m.cfg.Dimension
	}

	resp, err := m.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("response index %d out of range", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

func (m *OpenAIModel) Dimension() int {
	return m.cfg.Dimension
}

func (m *OpenAIModel) ModelName() string {
	return m.cfg.Model
}
