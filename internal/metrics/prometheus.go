// Package metrics wraps a Prometheus registry exposing the client's
// operational counters: ops issued/completed by kind and outcome,
// purge-synthesized callbacks, SASL negotiations, and reconnect attempts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the prometheus collectors for the client.
type Metrics struct {
	registry *prometheus.Registry

	opsTotal        *prometheus.CounterVec
	opDuration      *prometheus.HistogramVec
	purgedTotal     *prometheus.CounterVec
	saslAttempts    *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec
	serverState     *prometheus.GaugeVec
}

var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

var active *Metrics

// Init initializes the package-level metrics registry. Each call builds a
// fresh registry and replaces the active one; client.Create calls it for
// every Client created with metrics enabled.
func Init(namespace string, buckets []float64) *Metrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ops_total",
				Help:      "Total user operations completed, by opcode and status",
			},
			[]string{"opcode", "status"},
		),

		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_duration_milliseconds",
				Help:      "Duration from enqueue to callback dispatch, in milliseconds",
				Buckets:   buckets,
			},
			[]string{"opcode"},
		),

		purgedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purged_callbacks_total",
				Help:      "Callbacks synthesized by the implicit-response purge rule",
			},
			[]string{"opcode"},
		),

		saslAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sasl_attempts_total",
				Help:      "SASL negotiation attempts by mechanism and outcome",
			},
			[]string{"mechanism", "outcome"},
		),

		reconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "Server reconnection attempts by outcome",
			},
			[]string{"outcome"},
		),

		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight_requests",
				Help:      "Outstanding requests per server (cmd_log length)",
			},
			[]string{"server"},
		),

		serverState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "server_state",
				Help:      "Current connection state per server (see server.State)",
			},
			[]string{"server"},
		),
	}

	registry.MustRegister(
		m.opsTotal,
		m.opDuration,
		m.purgedTotal,
		m.saslAttempts,
		m.reconnectsTotal,
		m.inFlight,
		m.serverState,
	)

	active = m
	return m
}

// RecordOp records a completed user operation.
func RecordOp(opcode string, success bool, durationMs float64) {
	if active == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	active.opsTotal.WithLabelValues(opcode, status).Inc()
	active.opDuration.WithLabelValues(opcode).Observe(durationMs)
}

// RecordPurge records a synthetic callback produced by the purge rule.
func RecordPurge(opcode string) {
	if active == nil {
		return
	}
	active.purgedTotal.WithLabelValues(opcode).Inc()
}

// RecordSASLAttempt records one SASL negotiation outcome.
func RecordSASLAttempt(mechanism string, success bool) {
	if active == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	active.saslAttempts.WithLabelValues(mechanism, outcome).Inc()
}

// RecordReconnect records a reconnection attempt outcome.
func RecordReconnect(success bool) {
	if active == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	active.reconnectsTotal.WithLabelValues(outcome).Inc()
}

// SetInFlight sets the in-flight gauge for a server, identified by index.
func SetInFlight(server string, n int) {
	if active == nil {
		return
	}
	active.inFlight.WithLabelValues(server).Set(float64(n))
}

// SetServerState sets the server-state gauge, using the ordinal of
// server.State as the value.
func SetServerState(server string, state int) {
	if active == nil {
		return
	}
	active.serverState.WithLabelValues(server).Set(float64(state))
}

// Handler returns an HTTP handler for Prometheus scraping. If Init has not
// been called, it answers 503.
func Handler() http.Handler {
	if active == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(active.registry, promhttp.HandlerOpts{})
}

// Registry returns the active prometheus registry, or nil.
func Registry() *prometheus.Registry {
	if active == nil {
		return nil
	}
	return active.registry
}
