package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"docrag/config"
)

// CurrentSchemaVersion is the current artifact format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// ComputeConfigHash computes a hash of the configuration that shapes the
// vector table. A change means existing artifacts no longer apply.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Schema       int    `json:"schema"`
		ChunkSize    int    `json:"chunk_size"`
		ChunkOverlap int    `json:"chunk_overlap"`
		EmbProvider  string `json:"emb_provider"`
		EmbModel     string `json:"emb_model"`
		EmbDimension int    `json:"emb_dimension"`
	}{
		Schema:       CurrentSchemaVersion,
		ChunkSize:    cfg.Chunk.Size,
		ChunkOverlap: cfg.Chunk.Overlap,
		EmbProvider:  cfg.Embedding.Provider,
		EmbModel:     cfg.Embedding.Model,
		EmbDimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// ValidityKey combines the document's content key with a configuration
// hash. An artifact is reused only when both match.
func ValidityKey(documentKey, configHash string) string {
	return documentKey + "+" + configHash
}
