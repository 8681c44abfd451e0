package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docrag/internal/domain"
)

// Config holds all configuration for the docrag service.
type Config struct {
	Document   DocumentConfig   `yaml:"document"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DocumentConfig names the single source document.
type DocumentConfig struct {
	Source           string `yaml:"source"` // path, glob matching one file, or http(s) URL
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
}

// ChunkConfig holds chunking parameters, in runes.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"`    // "hashing", "openai", "ollama"
	Model           string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv       string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL         string `yaml:"base_url"`
	Dimension       int    `yaml:"dimension"` // 0 = model default
	BatchSize       int    `yaml:"batch_size"`
	Workers         int    `yaml:"workers"`
	LoadTimeoutSecs int    `yaml:"load_timeout_secs"`
	TimeoutSecs     int    `yaml:"timeout_secs"` // per embedding request
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK         int     `yaml:"top_k"`
	CacheSize    int     `yaml:"cache_size"` // query result cache entries (0 = disabled)
	CacheTTLSecs int     `yaml:"cache_ttl_secs"`
	MinScore     float64 `yaml:"min_score"` // drop results below this score (0 = disabled)
}

// CacheConfig locates the embedding artifact.
type CacheConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the root directory
}

// GenerationConfig selects the answer generator.
type GenerationConfig struct {
	Provider        string  `yaml:"provider"` // "extractive", "openai", "ollama"
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float32 `yaml:"temperature"`
	MaxContextChars int     `yaml:"max_context_chars"`
	TimeoutSecs     int     `yaml:"timeout_secs"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	AuthTokensEnv   string `yaml:"auth_tokens_env"` // comma separated tokens; empty disables auth
	ReadTimeoutSecs int    `yaml:"read_timeout_secs"`
	RetryAfterSecs  int    `yaml:"retry_after_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Document: DocumentConfig{
			FetchTimeoutSecs: 30,
		},
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:        "hashing",
			Model:           "hashing-v1",
			APIKeyEnv:       "OPENAI_API_KEY",
			BatchSize:       64,
			Workers:         4,
			LoadTimeoutSecs: 60,
			TimeoutSecs:     30,
		},
		Retrieve: RetrieveConfig{
			TopK:         4,
			CacheSize:    256,
			CacheTTLSecs: 300,
		},
		Cache: CacheConfig{
			Path: filepath.Join(".docrag", "embeddings.db"),
		},
		Generation: GenerationConfig{
			Provider:        "extractive",
			Model:           "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			Temperature:     0.2,
			MaxContextChars: 8000,
			TimeoutSecs:     60,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			AuthTokensEnv:   "DOCRAG_API_TOKENS",
			ReadTimeoutSecs: 15,
			RetryAfterSecs:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the parameters that would otherwise fail deep inside a rebuild.
func (c *Config) Validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("%w: chunk.size must be positive, got %d", domain.ErrConfig, c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("%w: chunk.overlap must be in [0, %d), got %d", domain.ErrConfig, c.Chunk.Size, c.Chunk.Overlap)
	}
	switch c.Embedding.Provider {
	case "hashing", "openai", "ollama":
	default:
		return fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrConfig, c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("%w: embedding.dimension must not be negative, got %d", domain.ErrConfig, c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding.batch_size must be positive, got %d", domain.ErrConfig, c.Embedding.BatchSize)
	}
	switch c.Generation.Provider {
	case "extractive", "openai", "ollama":
	default:
		return fmt.Errorf("%w: unsupported generation provider %q", domain.ErrConfig, c.Generation.Provider)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: retrieve.top_k must be positive, got %d", domain.ErrConfig, c.Retrieve.TopK)
	}
	return nil
}

// ArtifactPath returns the path of the embedding artifact for a root directory.
func (c *Config) ArtifactPath(dir string) string {
	if filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	return filepath.Join(dir, c.Cache.Path)
}

// EnsureDataDir ensures the directory holding the artifact exists.
func EnsureDataDir(artifactPath string) error {
	return os.MkdirAll(filepath.Dir(artifactPath), 0755)
}
