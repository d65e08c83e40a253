package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Events written to Kafka, by topic and event type.",
		},
		[]string{"topic", "event_type"},
	)

	producerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "kafka",
			Name:      "publish_failures_total",
			Help:      "Events Kafka refused or that timed out, by topic and event type.",
		},
		[]string{"topic", "event_type"},
	)

	// Writes are synchronous with RequireAll, so latency tracks the slowest
	// in-sync replica.
	producerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Time spent writing one event to Kafka.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"topic"},
	)
)
