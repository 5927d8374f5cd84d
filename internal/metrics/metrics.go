// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BrokerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_reconnects_total",
		Help: "Connection-level reconnect events.",
	})
	BrokerPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_publishes_total",
		Help: "Publish attempts handed to the broker.",
	})
	BrokerPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_publish_failures_total",
		Help: "Publishes that errored or were not confirmed.",
	})

	OutboxClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_claimed_total",
		Help: "Outbox rows claimed by the poller, by pass.",
	}, []string{"pass"})
	OutboxQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_queued_total",
		Help: "Outbox rows marked queued after a confirmed publish.",
	})
	PollCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_poll_cycle_seconds",
		Help:    "Duration of one poll cycle.",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications delivered, by kind.",
	}, []string{"kind"})
	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Delivery-channel failures, by kind.",
	}, []string{"kind"})
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Deliveries dropped without dispatch, by reason.",
	}, []string{"reason"})
)
