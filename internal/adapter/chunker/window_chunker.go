package chunker

import (
	"fmt"
	"unicode"

	"docrag/internal/domain"
)

// WindowChunker cuts text into fixed windows of runes. Consecutive windows
// share overlap runes; the stride is size-overlap.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(text string) ([]domain.Chunk, error) {
	return Split(text, c.size, c.overlap)
}

// Split is the stateless form of WindowChunker.Chunk.
func Split(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	stride := size - overlap

	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		lo, hi := trimSpan(runes, start, end)
		if lo < hi {
			chunks = append(chunks, domain.Chunk{
				Index: len(chunks),
				Text:  string(runes[lo:hi]),
				Start: lo,
				End:   hi,
			})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// trimSpan narrows [start, end) to exclude leading and trailing whitespace.
func trimSpan(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrConfig, size, overlap)
	}
	return nil
}
