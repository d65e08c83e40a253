package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations applied in memory",
		},
		[]string{"operation"},
	)

	persistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_failures_total",
			Help: "Cart saves that did not reach storage",
		},
		[]string{"reason"},
	)

	degradedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_degraded_entries_total",
			Help: "Custom entries loaded without their design payload",
		},
	)

	checkoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "Checkout sessions entering each status",
		},
		[]string{"status"},
	)

	paymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_attempts_total",
			Help: "Payment attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	paymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_payment_duration_seconds",
			Help:    "Time spent waiting on the payment provider",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "step"},
	)
)
