// Package metrics provides Prometheus metrics for the chat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConversationsStarted counts start calls by outcome (created or resumed).
	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_conversations_started_total",
			Help: "Total number of start calls by outcome",
		},
		[]string{"mode"},
	)

	// MessagesAppended counts persisted messages by sender role.
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Total number of messages persisted",
		},
		[]string{"sender"},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Total number of messages whose read_at was set",
		},
	)

	// Notifications counts fan-out attempts by result (ok, failed, panic).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Total number of best-effort notifications by result",
		},
		[]string{"result"},
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_notification_duration_seconds",
			Help:    "Duration of best-effort notification calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	// LiveSubscribers tracks websocket subscribers attached to this instance.
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_live_subscribers",
			Help: "Number of live subscribers attached to the local hub",
		},
	)

	// DroppedEvents counts events discarded for slow subscribers.
	DroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dropped_events_total",
			Help: "Total number of events dropped because a subscriber buffer was full",
		},
	)
)

func RecordNotification(result string, seconds float64) {
	Notifications.WithLabelValues(result).Inc()
	NotificationDuration.Observe(seconds)
}
