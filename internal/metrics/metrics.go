// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionTransitions counts connection state transitions.
	ConnectionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_connection_transitions_total",
			Help: "Connection state transitions by resulting state",
		},
		[]string{"state"},
	)

	// ReconnectAttempts counts scheduled reconnect attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desk_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled after abnormal closes",
		},
	)

	// EventsDispatched counts inbound events routed by type.
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_events_dispatched_total",
			Help: "Inbound server events dispatched by event type",
		},
		[]string{"type"},
	)

	// EventsDropped counts inbound events dropped as unknown or malformed.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_events_dropped_total",
			Help: "Inbound server events dropped",
		},
		[]string{"reason"},
	)

	// SessionsResident tracks sessions held in the local collection.
	SessionsResident = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desk_sessions_resident",
			Help: "Sessions currently held in the local collection",
		},
	)

	// SessionFetches counts novel-session detail fetches by outcome.
	SessionFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_session_fetches_total",
			Help: "Novel-session detail fetches by outcome",
		},
		[]string{"outcome"},
	)

	// MessagesSent counts optimistic local sends.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desk_messages_sent_total",
			Help: "Messages sent by the local agent",
		},
	)
)
