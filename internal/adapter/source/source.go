// Package source implements port.DocumentSource for local files and HTTP URLs.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// New picks a source for id by its scheme: http(s) URLs are fetched over
// HTTP, everything else is read from disk.
func New(id string, timeout time.Duration) port.DocumentSource {
	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return NewHTTP(timeout)
	}
	return NewFile()
}

// ContentKey returns the hex SHA-256 of the document bytes.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newDocument(id string, data []byte, now time.Time) (domain.Document, error) {
	if !utf8.Valid(data) {
		return domain.Document{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrDocumentFetch, id)
	}
	return domain.Document{
		ID:          id,
		Text:        string(data),
		ValidityKey: ContentKey(data),
		FetchedAt:   now,
	}, nil
}
