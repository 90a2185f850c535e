package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestDB(t *testing.T, monitor time.Duration) *DB {
	t.Helper()
	logger := logging.NewStructuredLoggerWithOptions(logging.Options{Service: "db-test", Output: io.Discard})
	db, err := Open(&Config{
		Driver:              "sqlite3",
		SQLitePath:          filepath.Join(t.TempDir(), "wx.db"),
		MaxOpenConns:        1,
		MaxIdleConns:        1,
		PoolMonitorInterval: monitor,
	}, logger, metrics.NewCollector("wx", prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{
		"":           SQLite,
		"sqlite3":    SQLite,
		"SQLite":     SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
	} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDialect("mysql")
	require.Error(t, err)
}

func TestDialect_DSN(t *testing.T) {
	dsn, err := Postgres.DSN(&Config{Host: "db", Port: 5432, User: "wx", Password: "pw", Database: "weather", SSLMode: "disable"})
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=wx password=pw dbname=weather sslmode=disable", dsn)

	dir := t.TempDir()
	dsn, err = SQLite.DSN(&Config{SQLitePath: filepath.Join(dir, "nested", "wx.db")})
	require.NoError(t, err)
	assert.Contains(t, dsn, "file:"+filepath.Join(dir, "nested", "wx.db")+"?")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.DirExists(t, filepath.Join(dir, "nested"))

	dsn, err = SQLite.DSN(&Config{SQLitePath: "file:wx.db?cache=shared"})
	require.NoError(t, err)
	assert.Equal(t, "file:wx.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)

	dsn, err = SQLite.DSN(&Config{DSN: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", dsn)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t, 0)
	ctx := context.Background()

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "0001", applied[0].Version)
	assert.Equal(t, "create_schema", applied[0].Name)

	applied, err = db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	versions, err := db.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001"}, versions)

	var n int
	require.NoError(t, db.GetContext(ctx, "count", &n, `SELECT COUNT(*) FROM stations`))
	assert.Equal(t, 0, n)
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t, 0)
	ctx := context.Background()
	_, err := db.Migrate(ctx)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "insert", `INSERT INTO stations (code) VALUES (?)`, "DUP")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "insert", `INSERT INTO stations (code) VALUES (?)`, "DUP")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestHealthCheckAndClose(t *testing.T) {
	db := openTestDB(t, 10*time.Millisecond)

	require.NoError(t, db.HealthCheck(context.Background()))
	time.Sleep(25 * time.Millisecond)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	assert.Error(t, db.HealthCheck(context.Background()))
}
