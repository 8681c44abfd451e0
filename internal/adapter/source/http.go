package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"docrag/internal/domain"
)

// maxBodyBytes bounds a fetched document.
const maxBodyBytes = 64 << 20

// HTTP fetches the document with a GET request.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP source. A zero timeout leaves the request bound
// only by the caller's context.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{client: &http.Client{Timeout: timeout}}
}

// Fetch implements port.DocumentSource.
func (h *HTTP) Fetch(ctx context.Context, id string) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, id, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrDocumentFetch, err)
	}
	req.Header.Set("Accept", "text/plain, text/*;q=0.9, */*;q=0.1")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrDocumentFetch, ctx.Err())
		}
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrDocumentFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Document{}, fmt.Errorf("%w: GET %s: %s", domain.ErrDocumentFetch, id, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: reading body: %v", domain.ErrDocumentFetch, err)
	}
	if len(data) > maxBodyBytes {
		return domain.Document{}, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrDocumentFetch, maxBodyBytes)
	}
	return newDocument(id, data, time.Now())
}
