package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketMeta    = []byte("meta")
	bucketChunks  = []byte("chunks")
	bucketVectors = []byte("vectors")
	keyMeta       = []byte("artifact")
)

// ErrArtifactMissing is returned by ReadArtifact when there is no file.
var ErrArtifactMissing = errors.New("cache artifact not found")

// ArtifactMeta describes a persisted vector table.
type ArtifactMeta struct {
	SchemaVersion int       `json:"schema_version"`
	ValidityKey   string    `json:"validity_key"`
	DocumentID    string    `json:"document_id"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	Count         int       `json:"count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Artifact is the persisted pair of chunks and embedding matrix.
type Artifact struct {
	Meta   ArtifactMeta
	Chunks []domain.Chunk
	Matrix domain.EmbeddingMatrix
}

type storedChunk struct {
	Text  string `json:"t"`
	Start int    `json:"s"`
	End   int    `json:"e"`
}

// WriteArtifact writes a to a fresh bolt file next to path and renames it
// over path, so readers see either the old artifact or the new one.
func WriteArtifact(path string, a *Artifact) error {
	if len(a.Chunks) != len(a.Matrix) {
		return fmt.Errorf("artifact has %d chunks but %d rows", len(a.Chunks), len(a.Matrix))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale temp file: %w", err)
	}

	db, err := bbolt.Open(tmp, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	meta := a.Meta
	meta.SchemaVersion = CurrentSchemaVersion
	meta.Count = len(a.Chunks)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		metaBucket, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		chunkBucket, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		vectorBucket, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}

		for i, chunk := range a.Chunks {
			data, err := json.Marshal(storedChunk{Text: chunk.Text, Start: chunk.Start, End: chunk.End})
			if err != nil {
				return err
			}
			key := indexKey(i)
			if err := chunkBucket.Put(key, data); err != nil {
				return err
			}
			if err := vectorBucket.Put(key, encodeVector(a.Matrix[i])); err != nil {
				return err
			}
		}

		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return metaBucket.Put(keyMeta, data)
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install artifact: %w", err)
	}
	return nil
}

// ReadArtifact loads and checks the artifact at path. Any inconsistency is
// reported as domain.ErrCorruptArtifact; a missing file as ErrArtifactMissing.
func ReadArtifact(path string) (*Artifact, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}
	defer db.Close()

	a := &Artifact{}
	err = db.View(func(tx *bbolt.Tx) error {
		metaBucket := tx.Bucket(bucketMeta)
		chunkBucket := tx.Bucket(bucketChunks)
		vectorBucket := tx.Bucket(bucketVectors)
		if metaBucket == nil || chunkBucket == nil || vectorBucket == nil {
			return errors.New("missing bucket")
		}

		data := metaBucket.Get(keyMeta)
		if data == nil {
			return errors.New("missing metadata")
		}
		if err := json.Unmarshal(data, &a.Meta); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		if a.Meta.SchemaVersion != CurrentSchemaVersion {
			return fmt.Errorf("schema version %d, expected %d", a.Meta.SchemaVersion, CurrentSchemaVersion)
		}
		if a.Meta.Count < 0 || a.Meta.Dimension < 0 {
			return fmt.Errorf("invalid shape %dx%d", a.Meta.Count, a.Meta.Dimension)
		}

		a.Chunks = make([]domain.Chunk, 0, a.Meta.Count)
		c := chunkBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			i := len(a.Chunks)
			if !isIndexKey(k, i) {
				return fmt.Errorf("chunk key %x out of sequence at %d", k, i)
			}
			var sc storedChunk
			if err := json.Unmarshal(v, &sc); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			a.Chunks = append(a.Chunks, domain.Chunk{Index: i, Text: sc.Text, Start: sc.Start, End: sc.End})
		}

		a.Matrix = make(domain.EmbeddingMatrix, 0, a.Meta.Count)
		c = vectorBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			i := len(a.Matrix)
			if !isIndexKey(k, i) {
				return fmt.Errorf("vector key %x out of sequence at %d", k, i)
			}
			if len(v) != 4*a.Meta.Dimension {
				return fmt.Errorf("vector %d has %d bytes, expected %d", i, len(v), 4*a.Meta.Dimension)
			}
			a.Matrix = append(a.Matrix, decodeVector(v))
		}

		if len(a.Chunks) != a.Meta.Count || len(a.Matrix) != a.Meta.Count {
			return fmt.Errorf("shape mismatch: meta count %d, %d chunks, %d rows", a.Meta.Count, len(a.Chunks), len(a.Matrix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptArtifact, path, err)
	}
	return a, nil
}

// RemoveArtifact deletes the artifact and any temp files left by an
// interrupted write. A missing artifact is not an error.
func RemoveArtifact(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	matches, err := doublestar.Glob(os.DirFS(dir), escapeGlob(base)+".tmp*")
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(filepath.Join(dir, m)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func indexKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

func isIndexKey(k []byte, i int) bool {
	return len(k) == 8 && binary.BigEndian.Uint64(k) == uint64(i)
}

// encodeVector stores the IEEE-754 bits so the matrix round-trips exactly.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
