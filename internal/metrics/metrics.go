// Package metrics records request, cache and partition counters for the
// market-data utilities on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache row sources.
const (
	SourceCache = "cache"
	SourceFetch = "fetch"
)

// Recorder is implemented by anything that accepts metric observations.
type Recorder interface {
	ObserveRequest(exchange, endpoint string, status int, duration time.Duration)
	AddCacheRows(source string, n int)
	IncCacheWrite()
	IncPartitionWritten(exchange string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) AddCacheRows(string, int)                          {}
func (Nop) IncCacheWrite()                                    {}
func (Nop) IncPartitionWritten(string)                        {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheRows         *prometheus.CounterVec
	cacheWrites       prometheus.Counter
	partitionsWritten *prometheus.CounterVec
}

// NewPrometheus registers the datautil collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datautil_http_requests_total",
			Help: "Exchange HTTP requests by endpoint and status code",
		}, []string{"exchange", "endpoint", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datautil_http_request_duration_seconds",
			Help:    "Exchange HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange"}),
		cacheRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datautil_cache_rows_total",
			Help: "Rows served by the fetch cache, split by origin",
		}, []string{"source"}),
		cacheWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "datautil_cache_writes_total",
			Help: "Cache files rewritten",
		}),
		partitionsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datautil_partitions_written_total",
			Help: "Daily partition files written",
		}, []string{"exchange"}),
	}
}

// ObserveRequest records one HTTP round trip. Status 0 means a transport failure.
func (p *Prometheus) ObserveRequest(exchange, endpoint string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	p.httpRequests.WithLabelValues(exchange, endpoint, code).Inc()
	p.httpDuration.WithLabelValues(exchange).Observe(duration.Seconds())
}

func (p *Prometheus) AddCacheRows(source string, n int) {
	if n > 0 {
		p.cacheRows.WithLabelValues(source).Add(float64(n))
	}
}

func (p *Prometheus) IncCacheWrite() {
	p.cacheWrites.Inc()
}

func (p *Prometheus) IncPartitionWritten(exchange string) {
	p.partitionsWritten.WithLabelValues(exchange).Inc()
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry to path in the text exposition format.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
