package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// CacheOptions locate the document and its artifact.
type CacheOptions struct {
	DocumentID   string
	ArtifactPath string
	ConfigHash   string // from store.ComputeConfigHash
	FetchTimeout time.Duration
}

// RebuildResult describes the outcome of an Ensure or Rebuild call.
type RebuildResult struct {
	Rebuilt  bool
	Chunks   int
	Duration time.Duration
}

// CacheManager owns the artifact file and decides whether the vector table
// can be loaded from it or has to be rebuilt from the document. It is the
// only component that reads or writes the artifact.
type CacheManager struct {
	source   port.DocumentSource
	chunker  port.Chunker
	embedder *embedding.Service
	store    *store.VectorStore
	opts     CacheOptions
	logger   logrus.FieldLogger
	progress embedding.ProgressFunc

	rebuildMu sync.Mutex

	mu         sync.RWMutex
	state      domain.CacheState
	lastErr    error
	meta       store.ArtifactMeta
	loadedAt   time.Time
	generation uint64
}

// NewCacheManager creates a manager in the Unloaded state.
func NewCacheManager(
	source port.DocumentSource,
	chunker port.Chunker,
	embedder *embedding.Service,
	vectors *store.VectorStore,
	opts CacheOptions,
	logger logrus.FieldLogger,
) *CacheManager {
	return &CacheManager{
		source:   source,
		chunker:  chunker,
		embedder: embedder,
		store:    vectors,
		opts:     opts,
		logger:   logger.WithField("component", "cache"),
		state:    domain.StateUnloaded,
	}
}

// SetProgress installs a callback for embedding progress during rebuilds.
func (m *CacheManager) SetProgress(fn embedding.ProgressFunc) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	m.progress = fn
}

// Ensure makes the vector table available. A Loaded manager returns
// immediately; otherwise the artifact is reused when its validity key
// matches the current document, and rebuilt when it is missing, corrupt
// or stale.
func (m *CacheManager) Ensure(ctx context.Context) (RebuildResult, error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	if m.State() == domain.StateLoaded {
		return RebuildResult{Chunks: m.store.Len()}, nil
	}
	return m.refresh(ctx, false)
}

// Rebuild rebuilds the table from the document regardless of the artifact.
func (m *CacheManager) Rebuild(ctx context.Context) (RebuildResult, error) {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.refresh(ctx, true)
}

// Clear deletes the artifact and its temp files and unloads the table.
func (m *CacheManager) Clear() error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	if err := store.RemoveArtifact(m.opts.ArtifactPath); err != nil {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	if err := m.store.Build(nil, nil); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = domain.StateUnloaded
	m.lastErr = nil
	m.meta = store.ArtifactMeta{}
	m.loadedAt = time.Time{}
	m.generation++
	m.mu.Unlock()

	m.logger.WithField("path", m.opts.ArtifactPath).Info("cache cleared")
	return nil
}

// Ready returns nil when queries can be served and a wrapped
// domain.ErrServiceUnavailable otherwise.
func (m *CacheManager) Ready() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state == domain.StateLoaded {
		return nil
	}
	if m.lastErr != nil {
		return fmt.Errorf("%w: cache %s: %v", domain.ErrServiceUnavailable, m.state, m.lastErr)
	}
	return fmt.Errorf("%w: cache %s", domain.ErrServiceUnavailable, m.state)
}

// State returns the current lifecycle state.
func (m *CacheManager) State() domain.CacheState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Generation increases every time a table is installed or cleared.
func (m *CacheManager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Status returns a snapshot for status endpoints and commands.
func (m *CacheManager) Status() domain.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := domain.Status{
		State:       m.state,
		DocumentID:  m.opts.DocumentID,
		Model:       m.meta.Model,
		ValidityKey: m.meta.ValidityKey,
		Generation:  m.generation,
		LoadedAt:    m.loadedAt,
	}
	if m.state == domain.StateLoaded {
		st.Chunks = m.store.Len()
		st.Dimension = m.meta.Dimension
	}
	if m.lastErr != nil {
		st.Error = m.lastErr.Error()
	}
	return st
}

func (m *CacheManager) refresh(ctx context.Context, force bool) (RebuildResult, error) {
	start := time.Now()
	log := m.logger.WithField("document", m.opts.DocumentID)

	doc, err := m.fetch(ctx)
	if err != nil {
		return RebuildResult{}, m.fail(err)
	}
	key := store.ValidityKey(doc.ValidityKey, m.opts.ConfigHash)

	// The model is loaded even when the artifact is reused, since every
	// query needs it.
	if err := m.embedder.Init(ctx); err != nil {
		return RebuildResult{}, m.fail(err)
	}

	if !force {
		reused, err := m.tryArtifact(key, log)
		if err != nil {
			return RebuildResult{}, m.fail(err)
		}
		if reused {
			return RebuildResult{Chunks: m.store.Len(), Duration: time.Since(start)}, nil
		}
	}

	m.setState(domain.StateRebuilding)
	log.Info("rebuilding vector table")

	chunks, err := m.chunker.Chunk(doc.Text)
	if err != nil {
		return RebuildResult{}, m.fail(err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	matrix, err := m.embedder.EmbedWithProgress(ctx, texts, m.progress)
	if err != nil {
		return RebuildResult{}, m.fail(err)
	}
	if err := m.store.Build(chunks, matrix); err != nil {
		return RebuildResult{}, m.fail(err)
	}

	meta := store.ArtifactMeta{
		ValidityKey: key,
		DocumentID:  doc.ID,
		Model:       m.embedder.ModelName(),
		Dimension:   m.embedder.Dimension(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.Save(m.opts.ArtifactPath, meta); err != nil {
		return RebuildResult{}, m.fail(fmt.Errorf("failed to save artifact: %w", err))
	}
	meta.Count = len(chunks)
	m.install(meta)

	result := RebuildResult{Rebuilt: true, Chunks: len(chunks), Duration: time.Since(start)}
	log.WithFields(logrus.Fields{
		"chunks": result.Chunks,
		"took":   result.Duration.String(),
	}).Info("vector table rebuilt")
	return result, nil
}

// tryArtifact installs the persisted table when it matches key. Corrupt
// artifacts are deleted so the rebuild starts clean.
func (m *CacheManager) tryArtifact(key string, log logrus.FieldLogger) (bool, error) {
	a, err := store.ReadArtifact(m.opts.ArtifactPath)
	switch {
	case errors.Is(err, store.ErrArtifactMissing):
		log.Info("no cached artifact")
		return false, nil
	case errors.Is(err, domain.ErrCorruptArtifact):
		log.WithError(err).Warn("discarding corrupt artifact")
		if rmErr := store.RemoveArtifact(m.opts.ArtifactPath); rmErr != nil {
			return false, fmt.Errorf("failed to remove corrupt artifact: %w", rmErr)
		}
		return false, nil
	case err != nil:
		return false, err
	}

	if a.Meta.ValidityKey != key {
		m.setState(domain.StateStale)
		log.WithFields(logrus.Fields{
			"cached":  a.Meta.ValidityKey,
			"current": key,
		}).Info("cached artifact is stale")
		return false, nil
	}
	if a.Meta.Count > 0 && a.Meta.Dimension != m.embedder.Dimension() {
		m.setState(domain.StateStale)
		log.WithField("dimension", a.Meta.Dimension).Warn("cached artifact dimension differs from model")
		return false, nil
	}

	if err := m.store.Build(a.Chunks, a.Matrix); err != nil {
		log.WithError(err).Warn("discarding unusable artifact")
		if rmErr := store.RemoveArtifact(m.opts.ArtifactPath); rmErr != nil {
			return false, fmt.Errorf("failed to remove corrupt artifact: %w", rmErr)
		}
		return false, nil
	}

	m.install(a.Meta)
	log.WithField("chunks", a.Meta.Count).Info("loaded cached vector table")
	return true, nil
}

func (m *CacheManager) fetch(ctx context.Context) (domain.Document, error) {
	if m.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.FetchTimeout)
		defer cancel()
	}
	doc, err := m.source.Fetch(ctx, m.opts.DocumentID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentFetch) {
			err = fmt.Errorf("%w: %v", domain.ErrDocumentFetch, err)
		}
		return domain.Document{}, err
	}
	return doc, nil
}

func (m *CacheManager) install(meta store.ArtifactMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.StateLoaded
	m.lastErr = nil
	m.meta = meta
	m.loadedAt = time.Now()
	m.generation++
}

func (m *CacheManager) setState(state domain.CacheState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

func (m *CacheManager) fail(err error) error {
	m.mu.Lock()
	m.state = domain.StateFailed
	m.lastErr = err
	m.mu.Unlock()

	m.logger.WithError(err).WithField("document", m.opts.DocumentID).Error("vector table unavailable")
	return err
}
