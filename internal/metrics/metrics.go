package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sohbetchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sohbetchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Sync metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sohbetchat_poll_cycles_total",
			Help: "Per-channel poll cycles",
		},
		[]string{"result"}, // "ok" or "error"
	)

	MessagesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sohbetchat_messages_merged_total",
			Help: "Messages merged into room caches",
		},
	)

	PushEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sohbetchat_push_events_total",
			Help: "Messages delivered over the push subscription",
		},
	)

	RosterSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sohbetchat_roster_syncs_total",
			Help: "Roster reconciliation cycles",
		},
		[]string{"result"},
	)

	// Business metrics
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sohbetchat_messages_posted_total",
			Help: "Messages written through the store",
		},
		[]string{"type"}, // USER, SYSTEM, ERROR
	)

	RegistrationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sohbetchat_registrations_created_total",
			Help: "Membership applications received",
		},
	)

	BotReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sohbetchat_bot_replies_total",
			Help: "Bot reply attempts",
		},
		[]string{"result"}, // "ok" or "fallback"
	)

	BotLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sohbetchat_bot_latency_seconds",
			Help:    "Bot text generation latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)
