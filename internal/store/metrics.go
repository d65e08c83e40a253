package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

var (
	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_store_operations_total",
			Help: "Store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_store_operation_duration_seconds",
			Help:    "Store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "op"},
	)
)

// Instrument wraps a Scoper so every operation is counted and timed.
func Instrument(s Scoper, backend string) Scoper {
	return &instrumentedScoper{next: s, backend: backend}
}

type instrumentedScoper struct {
	next    Scoper
	backend string
}

func (s *instrumentedScoper) Scope(owner string) Store {
	return &instrumentedStore{next: s.next.Scope(owner), backend: s.backend}
}

func (s *instrumentedScoper) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

type instrumentedStore struct {
	next    Store
	backend string
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		result = "not_found"
	case errors.Is(err, apperrors.ErrStorageQuotaExceeded):
		result = "quota_exceeded"
	default:
		result = "error"
	}
	storeOpsTotal.WithLabelValues(s.backend, op, result).Inc()
	storeOpDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (v []byte, err error) {
	start := time.Now()
	defer func() { s.observe("get", start, err) }()
	return s.next.Get(ctx, key)
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte) (err error) {
	start := time.Now()
	defer func() { s.observe("set", start, err) }()
	return s.next.Set(ctx, key, value)
}

func (s *instrumentedStore) Remove(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.observe("remove", start, err) }()
	return s.next.Remove(ctx, key)
}

func (s *instrumentedStore) ListKeys(ctx context.Context, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()
	return s.next.ListKeys(ctx, prefix)
}
