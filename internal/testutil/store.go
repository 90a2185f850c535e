// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"wxstats/internal/repository"
	"wxstats/pkg/database"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// Store bundles a migrated SQLite database with its repository.
type Store struct {
	DB      *database.DB
	Repo    repository.WeatherRepository
	Logger  *logging.StructuredLogger
	Metrics *metrics.Collector
}

// Logger returns a logger that discards output.
func Logger() *logging.StructuredLogger {
	return logging.NewStructuredLoggerWithOptions(logging.Options{
		Service: "wx-test",
		Level:   logging.DebugLevel,
		Output:  io.Discard,
	})
}

// Metrics returns a collector on a private registry.
func Metrics() *metrics.Collector {
	return metrics.NewCollector("wx_test", prometheus.NewRegistry())
}

// NewStore opens a file-backed SQLite store under t.TempDir and migrates it.
func NewStore(t testing.TB) *Store {
	t.Helper()

	logger := Logger()
	m := Metrics()

	db, err := database.Open(&database.Config{
		Driver:       "sqlite3",
		SQLitePath:   filepath.Join(t.TempDir(), "weather.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewWeatherRepository(db, logger, m)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	return &Store{DB: db, Repo: repo, Logger: logger, Metrics: m}
}
