package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lofi_posts_created_total",
			Help: "Total number of posts written, by media kind",
		},
		[]string{"kind"},
	)

	ModerationRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lofi_moderation_rejected_total",
			Help: "Total number of images rejected by moderation",
		},
	)

	ModerationFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lofi_moderation_fail_open_total",
			Help: "Total number of posts accepted because moderation was unavailable",
		},
	)

	Toggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lofi_toggles_total",
			Help: "Total number of set-membership toggles, by target and resulting state",
		},
		[]string{"target", "state"},
	)

	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lofi_active_subscriptions",
			Help: "Number of live store subscriptions, by kind",
		},
		[]string{"kind"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lofi_realtime_connections",
			Help: "Number of open realtime websocket connections",
		},
	)

	AutosavesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lofi_room_autosaves_total",
			Help: "Total number of room settings saves, by outcome",
		},
		[]string{"outcome"},
	)
)
