package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the HTTP layer.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queriesTotal    *prometheus.CounterVec

	namespace string
	registry  *prometheus.Registry
}

// QueryCacheStats is the view of the query result cache exported as metrics.
type QueryCacheStats interface {
	Stats() (hits, misses uint64)
	Size() int
}

// NewMetrics registers collectors on a private registry. status may be nil;
// when set, the loaded chunk count and cache generation are exported too.
func NewMetrics(namespace string, status StatusSource) *Metrics {
	if namespace == "" {
		namespace = "docrag"
	}

	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by outcome code",
		},
		[]string{"code"},
	)

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.queriesTotal)

	if status != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chunks_loaded",
				Help:      "Number of chunks in the loaded vector table",
			}, func() float64 { return float64(status.Status().Chunks) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_generation",
				Help:      "Number of vector table installs since start",
			}, func() float64 { return float64(status.Status().Generation) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ready",
				Help:      "1 when queries can be served",
			}, func() float64 {
				if status.Ready() == nil {
					return 1
				}
				return 0
			}),
		)
	}

	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// RegisterQueryCache exports hit, miss and size counters of the query cache.
func (m *Metrics) RegisterQueryCache(qc QueryCacheStats) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "query_cache_hits_total",
			Help:      "Queries answered from the result cache",
		}, func() float64 {
			hits, _ := qc.Stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "query_cache_misses_total",
			Help:      "Queries that had to be embedded and searched",
		}, func() float64 {
			_, misses := qc.Stats()
			return float64(misses)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "query_cache_entries",
			Help:      "Entries held by the result cache",
		}, func() float64 { return float64(qc.Size()) }),
	)
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) observeRequest(method, route string, status int, took time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) observeQuery(code string) {
	m.queriesTotal.WithLabelValues(code).Inc()
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
