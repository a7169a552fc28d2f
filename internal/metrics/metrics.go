// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch metrics
var (
	// EventsDispatchedTotal counts gateway events routed into coordinators,
	// by event type (chat/donation).
	EventsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dispatched_total",
			Help: "Total gateway events dispatched to channel coordinators",
		},
		[]string{"type"},
	)

	// FeatureErrorsTotal counts feature-level failures caught at the
	// coordinator boundary, by feature tag.
	FeatureErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Feature failures isolated by the channel coordinator",
		},
		[]string{"feature"},
	)

	// SessionsActive tracks live channel coordinators.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channel_sessions_active",
			Help: "Number of live channel coordinators",
		},
	)

	// ChatRepliesTotal counts outbound chat messages sent by features.
	ChatRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_replies_total",
			Help: "Outbound chat messages sent to the gateway",
		},
	)
)

// Broadcast hub metrics
var (
	HubActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_channels",
			Help: "Channels with at least one dashboard subscriber",
		},
	)

	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Connected dashboard websocket clients",
		},
	)

	HubBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "State broadcasts pushed to subscribers, by feature tag",
		},
		[]string{"feature"},
	)

	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Dashboard clients dropped for not keeping up",
		},
	)
)

// Persistence metrics
var (
	PersistFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_flushes_total",
			Help: "Debounced snapshot writes, by status (ok/error/skipped)",
		},
		[]string{"status"},
	)

	PersistFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "persist_flush_duration_seconds",
			Help:    "Snapshot write latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	PersistPendingChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "persist_pending_channels",
			Help: "Channels with a dirty snapshot awaiting flush",
		},
	)
)
