package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"docrag/internal/port"
)

// NewRouter creates and configures the HTTP router. Health, readiness and
// metrics stay open; everything under /v1 requires a token when validator
// is enabled.
func NewRouter(handler *Handler, validator port.TokenValidator, metrics *Metrics, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger, metrics))

	r.HandleFunc("/healthz", handler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handler.HandleReady).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(authMiddleware(validator))
	v1.HandleFunc("/query", handler.HandleQuery).Methods(http.MethodPost)
	v1.HandleFunc("/status", handler.HandleStatus).Methods(http.MethodGet)

	return r
}
