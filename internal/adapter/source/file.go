package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/domain"
)

// File reads the document from the local filesystem. The id is either a
// path or a doublestar pattern that resolves to exactly one regular file.
type File struct{}

// NewFile creates a filesystem source.
func NewFile() *File {
	return &File{}
}

// Fetch implements port.DocumentSource.
func (f *File) Fetch(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	path, err := f.resolve(id)
	if err != nil {
		return domain.Document{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrDocumentFetch, err)
	}
	return newDocument(path, data, time.Now())
}

func (f *File) resolve(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: no document source configured", domain.ErrDocumentFetch)
	}
	if !hasMeta(id) {
		return id, nil
	}

	matches, err := doublestar.FilepathGlob(id)
	if err != nil {
		return "", fmt.Errorf("%w: bad pattern %q: %v", domain.ErrDocumentFetch, id, err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: pattern %q matched no files", domain.ErrDocumentFetch, id)
	case 1:
		return files[0], nil
	default:
		return "", fmt.Errorf("%w: pattern %q matched %d files, expected one", domain.ErrDocumentFetch, id, len(files))
	}
}

func hasMeta(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
