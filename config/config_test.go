package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docrag/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunk.Size != 1000 {
		t.Errorf("expected Chunk.Size=1000, got %d", cfg.Chunk.Size)
	}
	if cfg.Chunk.Overlap != 200 {
		t.Errorf("expected Chunk.Overlap=200, got %d", cfg.Chunk.Overlap)
	}
	if cfg.Embedding.Provider != "hashing" {
		t.Errorf("expected hashing provider, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimension != 0 {
		t.Errorf("expected Dimension=0 (model default), got %d", cfg.Embedding.Dimension)
	}
	if cfg.Retrieve.TopK != 4 {
		t.Errorf("expected TopK=4, got %d", cfg.Retrieve.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docrag.yaml")

	content := `
document:
  source: docs/guide.txt
chunk:
  size: 400
  overlap: 40
embedding:
  provider: ollama
  model: nomic-embed-text
  dimension: 768
retrieve:
  top_k: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Document.Source != "docs/guide.txt" {
		t.Errorf("expected source docs/guide.txt, got %s", cfg.Document.Source)
	}
	if cfg.Chunk.Size != 400 || cfg.Chunk.Overlap != 40 {
		t.Errorf("expected chunk 400/40, got %d/%d", cfg.Chunk.Size, cfg.Chunk.Overlap)
	}
	if cfg.Embedding.Dimension != 768 {
		t.Errorf("expected Dimension=768, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Retrieve.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.Retrieve.TopK)
	}
	// untouched sections keep their defaults
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("expected default BatchSize=64, got %d", cfg.Embedding.BatchSize)
	}
}

func TestLoad_DimensionLeftToModel(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "docrag.yaml")
	content := `
embedding:
  provider: ollama
  model: nomic-embed-text
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Dimension != 0 {
		t.Errorf("expected Dimension=0 when unset, got %d", cfg.Embedding.Dimension)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unset dimension should validate, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".docrag"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".docrag", "config.yaml")

	content := `
generation:
  max_context_chars: 2000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.MaxContextChars != 2000 {
		t.Errorf("expected MaxContextChars=2000, got %d", cfg.Generation.MaxContextChars)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunk.Size = 0 }},
		{"negative overlap", func(c *Config) { c.Chunk.Overlap = -1 }},
		{"overlap equals size", func(c *Config) { c.Chunk.Overlap = c.Chunk.Size }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "word2vec" }},
		{"negative dimension", func(c *Config) { c.Embedding.Dimension = -1 }},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "oracle" }},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if !errors.Is(err, domain.ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", tt.name, err)
		}
	}
}

func TestArtifactPath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.ArtifactPath("/srv/app")
	expected := filepath.Join("/srv/app", ".docrag", "embeddings.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Cache.Path = "/var/cache/docrag.db"
	if got := cfg.ArtifactPath("/srv/app"); got != "/var/cache/docrag.db" {
		t.Errorf("absolute cache path should be kept, got %s", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrag.yaml")
	cfg := DefaultConfig()
	cfg.Document.Source = "https://example.com/handbook.txt"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Document.Source != cfg.Document.Source {
		t.Errorf("expected source %s, got %s", cfg.Document.Source, loaded.Document.Source)
	}
}
