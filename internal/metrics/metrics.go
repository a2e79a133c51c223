// Package metrics holds the Prometheus collectors exported on /metrics.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settleup"

// Metrics groups the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	resettles   *prometheus.CounterVec
	settlements prometheus.Histogram
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC requests by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		resettles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resettles_total",
			Help:      "Settlement recomputations by result.",
		}, []string{"result"}),
		settlements: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlements_per_group",
			Help:      "Number of settlements produced by a recomputation.",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rpcRequests,
		m.rpcDuration,
		m.resettles,
		m.settlements,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRPC records one finished RPC.
func (m *Metrics) ObserveRPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(procedure, code).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// ObserveResettle records one recomputation and the size of its result.
func (m *Metrics) ObserveResettle(settlements int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.resettles.WithLabelValues("error").Inc()
		return
	}
	m.resettles.WithLabelValues("ok").Inc()
	m.settlements.Observe(float64(settlements))
}
