package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Options tune how a Service drives its model.
type Options struct {
	BatchSize   int
	Workers     int
	LoadTimeout time.Duration
}

// ProgressFunc is called after each finished batch with the number of
// embedded texts so far.
type ProgressFunc func(done, total int)

// Service is the embedder shared by indexing and querying. It loads its
// model once, on first use, and returns unit-length vectors of a fixed
// dimension. Chunks and queries must go through the same Service so their
// vectors stay comparable.
type Service struct {
	model  port.EmbeddingModel
	opts   Options
	logger logrus.FieldLogger

	once    sync.Once
	loadErr error
}

func NewService(model port.EmbeddingModel, opts Options, logger logrus.FieldLogger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Service{
		model:  model,
		opts:   opts,
		logger: logger,
	}
}

// Init loads the model. Only the first call does any work; a load failure
// is remembered and returned by every later call.
func (s *Service) Init(ctx context.Context) error {
	s.once.Do(func() {
		if s.opts.LoadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.LoadTimeout)
			defer cancel()
		}

		start := time.Now()
		if err := s.model.Load(ctx); err != nil {
			s.loadErr = fmt.Errorf("%w: %s: %v", domain.ErrModelUnavailable, s.model.ModelName(), err)
			s.logger.WithError(err).WithField("model", s.model.ModelName()).Error("embedding model failed to load")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"model":     s.model.ModelName(),
			"dimension": s.model.Dimension(),
			"took":      time.Since(start).String(),
		}).Info("embedding model loaded")
	})
	return s.loadErr
}

// Embed embeds texts in batches. Row i of the result belongs to texts[i].
func (s *Service) Embed(ctx context.Context, texts []string) (domain.EmbeddingMatrix, error) {
	return s.EmbedWithProgress(ctx, texts, nil)
}

// EmbedWithProgress is Embed with a progress callback. Batches run on up to
// Options.Workers goroutines; progress may be reported from any of them.
func (s *Service) EmbedWithProgress(ctx context.Context, texts []string, progress ProgressFunc) (domain.EmbeddingMatrix, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	out := make(domain.EmbeddingMatrix, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for start := 0; start < len(texts); start += s.opts.BatchSize {
		start := start // per-iteration copy (go.mod targets go 1.21)
		end := start + s.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		g.Go(func() error {
			vecs, err := s.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
			}
			copy(out[start:end], vecs)

			if progress != nil {
				mu.Lock()
				done += end - start
				progress(done, len(texts))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedOne embeds a single text, typically a query.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	vecs, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *Service) Dimension() int {
	return s.model.Dimension()
}

func (s *Service) ModelName() string {
	return s.model.ModelName()
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.model.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: model returned %d vectors for %d texts", domain.ErrModelUnavailable, len(vecs), len(texts))
	}

	dim := s.model.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", domain.ErrModelUnavailable, i, len(v), dim)
		}
		Normalize(v)
	}
	return vecs, nil
}

// Normalize scales v to unit L2 length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
