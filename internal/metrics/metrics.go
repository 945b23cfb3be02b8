package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "socksession"

// Session event labels.
const (
	EventConnected    = "connected"
	EventReconnected  = "reconnected"
	EventDisconnected = "disconnected"
	EventConnectError = "connect_error"
	EventUnauthorized = "unauthorized"
	EventLoggedOut    = "logged_out"
	EventInactivity   = "inactivity_logout"
)

// Gateway outcome labels.
const (
	OutcomeOK              = "ok"
	OutcomeServerError     = "server_error"
	OutcomeConnectionError = "connection_error"
	OutcomeTimeout         = "timeout"
	OutcomeExhausted       = "attempts_exhausted"
	OutcomeCanceled        = "canceled"
)

// Metrics holds the collectors for one client. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sessionEvents *prometheus.CounterVec
	connected     prometheus.Gauge
	refreshes     *prometheus.CounterVec

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "events_total",
				Help:      "Session lifecycle events.",
			},
			[]string{"event"},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "connected",
				Help:      "1 while the session is authenticated.",
			},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "token_refreshes_total",
				Help:      "Token refresh rounds by result.",
			},
			[]string{"result"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "calls_total",
				Help:      "Gateway calls by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Gateway call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "retries_total",
				Help:      "Re-emissions triggered by reconnection.",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.sessionEvents, m.connected, m.refreshes, m.calls, m.callDuration, m.retries)
	return m
}

// SessionEvent counts a lifecycle event.
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

// SetConnected mirrors the session's connected flag.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// TokenRefresh counts a refresh round. result is "sent", "renewed" or "expired".
func (m *Metrics) TokenRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// Call records a finished gateway call.
func (m *Metrics) Call(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(kind, outcome).Inc()
	m.callDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

// Retry counts a re-emission.
func (m *Metrics) Retry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}
