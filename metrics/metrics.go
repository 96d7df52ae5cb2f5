// Package metrics exposes export progress as prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blockexport"

// Metrics groups the collectors updated during an export. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	BlocksExported prometheus.Counter
	ChunksExported prometheus.Counter
	BytesWritten   prometheus.Counter
	FetchErrors    prometheus.Counter
	FetchDuration  prometheus.Histogram
	InFlight       prometheus.Gauge
}

// New registers the export collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BlocksExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_exported_total",
			Help:      "Blocks written to the output.",
		}),
		ChunksExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_exported_total",
			Help:      "Chunks written and flushed to the output.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes of rlp encoded blocks written to the output.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed eth_getBlockByNumber requests.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of eth_getBlockByNumber requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests holding a concurrency permit.",
		}),
	}
	m.registry.MustRegister(
		m.BlocksExported,
		m.ChunksExported,
		m.BytesWritten,
		m.FetchErrors,
		m.FetchDuration,
		m.InFlight,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records the outcome of one block request
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.Inc()
	}
}

// SetInFlight records the number of permits held
func (m *Metrics) SetInFlight(n int64) {
	if m == nil {
		return
	}
	m.InFlight.Set(float64(n))
}

// ChunkWritten records a flushed chunk of blocks totalling bytes
func (m *Metrics) ChunkWritten(blocks int, bytes uint64) {
	if m == nil {
		return
	}
	m.ChunksExported.Inc()
	m.BlocksExported.Add(float64(blocks))
	m.BytesWritten.Add(float64(bytes))
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("Starting metrics server", "addr", ln.Addr().String())
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "err", err)
		}
	}()
	return nil
}
