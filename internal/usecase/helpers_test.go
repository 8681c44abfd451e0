package usecase

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/source"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

const anemiaDoc = "Vitamin C is found in citrus fruits. Iron deficiency causes anemia."

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// memSource serves a mutable in-memory document.
type memSource struct {
	mu      sync.Mutex
	text    string
	err     error
	fetches int
}

func (s *memSource) set(text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text, s.err = text, err
}

func (s *memSource) Fetch(ctx context.Context, id string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return domain.Document{}, s.err
	}
	return domain.Document{
		ID:          id,
		Text:        s.text,
		ValidityKey: source.ContentKey([]byte(s.text)),
		FetchedAt:   time.Now(),
	}, nil
}

// countingModel is the hashing model with call counting and an optional
// gate that holds every Embed call until it is closed.
type countingModel struct {
	*embedding.HashingModel
	loadErr error
	gate    chan struct{}
	calls   atomic.Int32
}

func newCountingModel() *countingModel {
	return &countingModel{
		HashingModel: embedding.NewHashingModel("hashing-v1", 1024, analyzer.NewTokenizer(true)),
	}
}

func (m *countingModel) Load(ctx context.Context) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	return m.HashingModel.Load(ctx)
}

func (m *countingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.HashingModel.Embed(ctx, texts)
}

type stack struct {
	manager    *CacheManager
	retriever  *Retriever
	store      *store.VectorStore
	queryCache *cache.QueryCache
	model      *countingModel
	artifact   string
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Chunk.Size = 37
	cfg.Chunk.Overlap = 0
	return cfg
}

// newStack wires a manager and retriever the way the CLI does, against
// artifact. Every call gets a fresh model, as after a process restart.
func newStack(t *testing.T, src *memSource, artifact string) *stack {
	t.Helper()
	cfg := testConfig()

	ch, err := chunker.NewWindowChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	require.NoError(t, err)

	model := newCountingModel()
	svc := embedding.NewService(model, embedding.Options{BatchSize: 1, Workers: 2}, quietLogger())
	vectors := store.NewVectorStore()

	manager := NewCacheManager(src, ch, svc, vectors, CacheOptions{
		DocumentID:   "anemia.txt",
		ArtifactPath: artifact,
		ConfigHash:   store.ComputeConfigHash(cfg),
		FetchTimeout: time.Second,
	}, quietLogger())
	queryCache := cache.NewQueryCache(16, time.Minute)
	retriever := NewRetriever(manager, svc, vectors, queryCache, 0, quietLogger())

	return &stack{
		manager:    manager,
		retriever:  retriever,
		store:      vectors,
		queryCache: queryCache,
		model:      model,
		artifact:   artifact,
	}
}

func artifactPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".docrag", "embeddings.db")
}
