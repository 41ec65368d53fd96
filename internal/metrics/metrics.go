// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - relay session counts and forwarded frame rates
//   - catalog fetch outcomes
//   - scheduler tick outcomes
//   - audit writer flush counts
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RelaySessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_sessions_opened_total", Help: "Relay sessions that reached the streaming state"},
	)
	RelaySessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_sessions_active", Help: "Relay sessions currently streaming"},
	)
	RelayFramesForwarded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "relay_frames_forwarded_total", Help: "Upstream frames forwarded to clients"},
	)
	CatalogFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_fetches_total", Help: "Instrument catalog fetch attempts"},
		[]string{"result"},
	)
	SchedulerTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_ticks_total", Help: "Signal scheduler ticks"},
		[]string{"result"},
	)
	AuditFlushes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "audit_flushes_total", Help: "Session audit batches flushed"},
	)
)

func init() {
	prometheus.MustRegister(
		RelaySessionsOpened,
		RelaySessionsActive,
		RelayFramesForwarded,
		CatalogFetches,
		SchedulerTicks,
		AuditFlushes,
	)
}

// Serve exposes the metrics endpoint on addr and returns the server so the
// caller can shut it down.
func Serve(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
