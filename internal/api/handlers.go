// Package api serves queries over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
)

// maxRequestBytes bounds a query request body.
const maxRequestBytes = 1 << 20

// Answerer produces an answer for a query.
type Answerer interface {
	Answer(ctx context.Context, query string, topK int) (domain.Answer, error)
}

// StatusSource reports the state of the vector table.
type StatusSource interface {
	Ready() error
	Status() domain.Status
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query         string `json:"query"`
	TopK          *int   `json:"top_k,omitempty"`
	IncludeChunks bool   `json:"include_chunks,omitempty"`
}

// ChunkResult is one ranked chunk in a response.
type ChunkResult struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Answer string        `json:"answer"`
	Chunks []ChunkResult `json:"chunks,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	answerer   Answerer
	status     StatusSource
	defaultK   int
	retryAfter int
	metrics    *Metrics
	logger     logrus.FieldLogger
}

// HandlerOptions configure a Handler.
type HandlerOptions struct {
	DefaultTopK    int
	RetryAfterSecs int
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(answerer Answerer, status StatusSource, opts HandlerOptions, metrics *Metrics, logger logrus.FieldLogger) *Handler {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 4
	}
	return &Handler{
		answerer:   answerer,
		status:     status,
		defaultK:   opts.DefaultTopK,
		retryAfter: opts.RetryAfterSecs,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleQuery handles POST /v1/query requests.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		h.countQuery("invalid_argument")
		sendError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON: "+err.Error())
		return
	}

	topK := h.defaultK
	if req.TopK != nil {
		topK = *req.TopK
	}

	answer, err := h.answerer.Answer(r.Context(), req.Query, topK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := QueryResponse{Answer: answer.Text}
	if req.IncludeChunks {
		resp.Chunks = make([]ChunkResult, len(answer.Chunks))
		for i, c := range answer.Chunks {
			resp.Chunks[i] = ChunkResult{
				Index: c.Chunk.Index,
				Text:  c.Chunk.Text,
				Start: c.Chunk.Start,
				End:   c.Chunk.End,
				Score: c.Score,
			}
		}
	}
	h.countQuery("ok")
	sendJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /healthz requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady handles GET /readyz requests.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.status.Ready(); err != nil {
		h.setRetryAfter(w)
		sendError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus handles GET /v1/status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.status.Status())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	h.countQuery(code)

	log := h.logger.WithError(err).WithField("request_id", RequestID(r.Context()))
	if status >= http.StatusInternalServerError {
		log.Warn("query failed")
	} else {
		log.Debug("query rejected")
	}

	if status == http.StatusServiceUnavailable {
		h.setRetryAfter(w)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	sendError(w, status, code, msg)
}

func (h *Handler) setRetryAfter(w http.ResponseWriter) {
	if h.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(h.retryAfter))
	}
}

func (h *Handler) countQuery(code string) {
	if h.metrics != nil {
		h.metrics.observeQuery(code)
	}
}

// statusClientClosed is the nginx convention for a request the client
// abandoned before the response was written.
const statusClientClosed = 499

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "canceled"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, code, msg string) {
	sendJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
