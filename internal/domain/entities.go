package domain

import "time"

// Document is the raw source text together with the key used to decide
// whether a persisted artifact still describes it.
type Document struct {
	ID          string
	Text        string
	ValidityKey string
	FetchedAt   time.Time
}

// Chunk is a span of the source document. Start and End are rune offsets,
// so []rune(doc.Text)[Start:End] == Text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EmbeddingMatrix holds one row per chunk; row i belongs to chunk i.
type EmbeddingMatrix [][]float32

// Rows returns the number of rows.
func (m EmbeddingMatrix) Rows() int {
	return len(m)
}

// Dim returns the width of the first row, or 0 for an empty matrix.
func (m EmbeddingMatrix) Dim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// CacheState is the lifecycle state of the cached vector table.
type CacheState string

const (
	StateUnloaded   CacheState = "unloaded"
	StateLoaded     CacheState = "loaded"
	StateStale      CacheState = "stale"
	StateRebuilding CacheState = "rebuilding"
	StateFailed     CacheState = "failed"
)

// Status is a point-in-time view of the cache manager for readiness checks.
type Status struct {
	State       CacheState `json:"state"`
	DocumentID  string     `json:"document_id,omitempty"`
	Chunks      int        `json:"chunks"`
	Dimension   int        `json:"dimension"`
	Model       string     `json:"model,omitempty"`
	ValidityKey string     `json:"validity_key,omitempty"`
	Generation  uint64     `json:"generation"`
	LoadedAt    time.Time  `json:"loaded_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Answer is the result of a query handed through the generation step.
type Answer struct {
	Query  string        `json:"query"`
	Text   string        `json:"answer"`
	Chunks []ScoredChunk `json:"chunks,omitempty"`
}
