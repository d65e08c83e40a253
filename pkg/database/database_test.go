package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRetryBackoff_WithinJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := retryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitter))
		hi := time.Duration(float64(base) * (1 + retryJitter))
		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New(`syntax error at or near "TABLE"`)))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), nil, "op", isConnectionError, func() error {
		calls++
		return errors.New("permission denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, nil, "op", func(error) bool { return true }, func() error {
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

var testMigrations = fstest.MapFS{
	"001_create_kv.up.sql":   {Data: []byte("CREATE TABLE kv (k TEXT)")},
	"001_create_kv.down.sql": {Data: []byte("DROP TABLE kv")},
	"002_add_index.up.sql":   {Data: []byte("CREATE INDEX kv_k ON kv (k)")},
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	exists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")
	record := regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery(exists).WithArgs("001_create_kv.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(exists).WithArgs("002_add_index.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX kv_k ON kv (k)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(record).WithArgs("002_add_index.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, l))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "002_add_index.up.sql")
}

func TestRunMigrations_RollsBackFailedFile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_create_kv.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE kv (k TEXT)")).
		WillReturnError(errors.New(`relation "kv" already exists`))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, testMigrations, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_create_kv.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTracer_RecordsErrorSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	var buf bytes.Buffer
	qt := QueryTracer{System: "postgresql", SlowThreshold: time.Nanosecond, Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	_, end := qt.Start(context.Background(), "kv.set", "INSERT INTO storefront_kv")
	end(errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.kv.set", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, buf.String(), "slow query detected")
}

func TestPoolStatsCollector_DescribeAndNilPool(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")

	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	assert.Len(t, descs, 8)

	metrics := make(chan prometheus.Metric, 16)
	c.Collect(metrics)
	close(metrics)
	assert.Empty(t, metrics)
}
