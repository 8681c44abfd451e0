package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/domain"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// countingModel encodes each text's number as its first component and
// records how often it was loaded and called.
type countingModel struct {
	dim     int
	loadErr error
	loads   atomic.Int32
	calls   atomic.Int32
	badDim  bool
}

func (m *countingModel) Load(ctx context.Context) error {
	m.loads.Add(1)
	return m.loadErr
}

func (m *countingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil, err
		}
		width := m.dim
		if m.badDim {
			width = m.dim + 1
		}
		v := make([]float32, width)
		v[0] = float32(n + 1)
		v[1] = 1
		out[i] = v
	}
	return out, nil
}

func (m *countingModel) Dimension() int    { return m.dim }
func (m *countingModel) ModelName() string { return "counting" }

func TestServiceLoadsOnce(t *testing.T) {
	model := &countingModel{dim: 4}
	svc := NewService(model, Options{BatchSize: 2, Workers: 4}, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.EmbedOne(context.Background(), strconv.Itoa(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), model.loads.Load())
}

func TestServiceModelUnavailable(t *testing.T) {
	model := &countingModel{dim: 4, loadErr: errors.New("weights missing")}
	svc := NewService(model, Options{}, quietLogger())

	_, err := svc.Embed(context.Background(), []string{"1"})
	require.ErrorIs(t, err, domain.ErrModelUnavailable)

	_, err = svc.EmbedOne(context.Background(), "2")
	require.ErrorIs(t, err, domain.ErrModelUnavailable)

	assert.Equal(t, int32(1), model.loads.Load(), "a failed load is not retried")
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestServicePreservesOrder(t *testing.T) {
	model := &countingModel{dim: 4}
	svc := NewService(model, Options{BatchSize: 3, Workers: 5}, quietLogger())

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	var last int
	matrix, err := svc.EmbedWithProgress(context.Background(), texts, func(done, total int) {
		assert.Equal(t, 50, total)
		assert.Greater(t, done, last)
		last = done
	})
	require.NoError(t, err)
	require.Len(t, matrix, 50)
	assert.Equal(t, 50, last)

	for i, row := range matrix {
		// rows are normalized; the ratio of the first two components survives
		ratio := float64(row[0]) / float64(row[1])
		assert.InDelta(t, float64(i+1), ratio, 1e-3, "row %d out of order", i)
	}
}

func TestServiceRejectsWrongDimension(t *testing.T) {
	model := &countingModel{dim: 4, badDim: true}
	svc := NewService(model, Options{}, quietLogger())

	_, err := svc.Embed(context.Background(), []string{"1", "2"})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestServicePropagatesBatchError(t *testing.T) {
	model := &countingModel{dim: 4}
	svc := NewService(model, Options{BatchSize: 1, Workers: 2}, quietLogger())

	_, err := svc.Embed(context.Background(), []string{"1", "not-a-number", "3"})
	assert.Error(t, err)
}

func TestServiceEmptyInput(t *testing.T) {
	svc := NewService(&countingModel{dim: 4}, Options{}, quietLogger())

	matrix, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, matrix.Rows())
}

func TestHashingDimensionInvariant(t *testing.T) {
	model := NewHashingModel("", 256, analyzer.NewTokenizer(true))
	svc := NewService(model, Options{}, quietLogger())

	texts := []string{"", "anemia", "Vitamin C is found in citrus fruits.", "a b c", "Größe und Gewicht"}
	for _, text := range texts {
		vec, err := svc.EmbedOne(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, 256, "text %q", text)
	}
	assert.Equal(t, 256, svc.Dimension())
	assert.Equal(t, "hashing-v1", svc.ModelName())
}

func TestHashingDeterministicAndNormalized(t *testing.T) {
	svc := NewService(NewHashingModel("", 512, analyzer.NewTokenizer(true)), Options{}, quietLogger())
	ctx := context.Background()

	a, err := svc.EmbedOne(ctx, "Iron deficiency causes anemia.")
	require.NoError(t, err)
	b, err := svc.EmbedOne(ctx, "Iron deficiency causes anemia.")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestHashingInvalidDimension(t *testing.T) {
	svc := NewService(NewHashingModel("", 0, analyzer.NewTokenizer(true)), Options{}, quietLogger())
	_, err := svc.EmbedOne(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func ExampleNormalize() {
	v := []float32{3, 4}
	Normalize(v)
	fmt.Printf("%.1f %.1f\n", v[0], v[1])
	// Output: 0.6 0.8
}
