package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/llm"
	"docrag/internal/adapter/source"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// app is the wired retrieval stack shared by the commands.
type app struct {
	cfg          *config.Config
	artifactPath string
	embedder     *embedding.Service
	store        *store.VectorStore
	manager      *usecase.CacheManager
	retriever    *usecase.Retriever
	queryCache   *cache.QueryCache
}

func newApp(cfg *config.Config, rootDir string, logger logrus.FieldLogger) (*app, error) {
	if cfg.Document.Source == "" {
		return nil, fmt.Errorf("%w: no document source; set document.source or pass --source", domain.ErrConfig)
	}

	docID := cfg.Document.Source
	if !isURL(docID) && !filepath.IsAbs(docID) {
		docID = filepath.Join(rootDir, docID)
	}

	model, err := newEmbeddingModel(cfg)
	if err != nil {
		return nil, err
	}

	chk, err := chunker.NewWindowChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		return nil, err
	}

	artifactPath := cfg.ArtifactPath(rootDir)
	if err := config.EnsureDataDir(artifactPath); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	embedder := embedding.NewService(model, embedding.Options{
		BatchSize:   cfg.Embedding.BatchSize,
		Workers:     cfg.Embedding.Workers,
		LoadTimeout: seconds(cfg.Embedding.LoadTimeoutSecs),
	}, logger)
	vectors := store.NewVectorStore()

	manager := usecase.NewCacheManager(
		source.New(docID, seconds(cfg.Document.FetchTimeoutSecs)),
		chk,
		embedder,
		vectors,
		usecase.CacheOptions{
			DocumentID:   docID,
			ArtifactPath: artifactPath,
			ConfigHash:   store.ComputeConfigHash(cfg),
			FetchTimeout: seconds(cfg.Document.FetchTimeoutSecs),
		},
		logger,
	)

	queryCache := cache.NewQueryCache(cfg.Retrieve.CacheSize, seconds(cfg.Retrieve.CacheTTLSecs))
	retriever := usecase.NewRetriever(manager, embedder, vectors, queryCache, cfg.Retrieve.MinScore, logger)

	return &app{
		cfg:          cfg,
		artifactPath: artifactPath,
		embedder:     embedder,
		store:        vectors,
		manager:      manager,
		retriever:    retriever,
		queryCache:   queryCache,
	}, nil
}

func (a *app) answerer(logger logrus.FieldLogger) (*usecase.Answerer, error) {
	gen, err := newGenerator(a.cfg)
	if err != nil {
		return nil, err
	}
	return usecase.NewAnswerer(a.retriever, gen, a.cfg.Generation.MaxContextChars, logger), nil
}

func newEmbeddingModel(cfg *config.Config) (port.EmbeddingModel, error) {
	ec := cfg.Embedding
	oc := embedding.OpenAIConfig{
		Model:     ec.Model,
		APIKeyEnv: ec.APIKeyEnv,
		BaseURL:   ec.BaseURL,
		Dimension: ec.Dimension,
		Timeout:   seconds(ec.TimeoutSecs),
	}

	switch ec.Provider {
	case "hashing":
		dim := ec.Dimension
		if dim == 0 {
			dim = embedding.DefaultHashingDimension
		}
		return embedding.NewHashingModel(ec.Model, dim, analyzer.NewTokenizer(true)), nil
	case "openai":
		return embedding.NewOpenAIModel(oc), nil
	case "ollama":
		return embedding.NewOllamaModel(oc), nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfig, ec.Provider)
	}
}

func newGenerator(cfg *config.Config) (port.Generator, error) {
	gc := cfg.Generation
	switch gc.Provider {
	case "extractive":
		return llm.NewExtractive(), nil
	case "openai", "ollama":
		gen, err := llm.NewOpenAI(llm.Config{
			Provider:    gc.Provider,
			Model:       gc.Model,
			APIKeyEnv:   gc.APIKeyEnv,
			BaseURL:     gc.BaseURL,
			Temperature: gc.Temperature,
			Timeout:     seconds(gc.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("%w: unsupported generation provider: %s", domain.ErrConfig, gc.Provider)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func isURL(id string) bool {
	_, ok := source.New(id, 0).(*source.HTTP)
	return ok
}
