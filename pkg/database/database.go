package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// Config holds database connection configuration
type Config struct {
	Driver string

	// SQLite
	SQLitePath string
	DSN        string

	// PostgreSQL
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PoolMonitorInterval controls how often pool gauges are refreshed; zero disables it.
	PoolMonitorInterval time.Duration
}

// DB wraps sqlx.DB with monitoring and metrics. Queries are written with
// '?' placeholders and rebound for the active driver.
type DB struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  *Config

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open creates a new database handle for cfg.Driver and verifies connectivity.
func Open(cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := dialect.DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(context.Background(), "[DB_INIT] Database connection established", logging.Fields{
		"driver":            dialect.String(),
		"host":              cfg.Host,
		"database":          cfg.Database,
		"sqlite_path":       cfg.SQLitePath,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	d := &DB{
		db:      db,
		dialect: dialect,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
		stop:    make(chan struct{}),
	}

	if cfg.PoolMonitorInterval > 0 {
		d.wg.Add(1)
		go d.monitorConnectionPool(cfg.PoolMonitorInterval)
	}

	return d, nil
}

// Close stops the pool monitor and closes the database connection
func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
		d.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
			"driver": d.dialect.String(),
		})
		err = d.db.Close()
	})
	return err
}

// DB returns the underlying sqlx.DB instance
func (d *DB) DB() *sqlx.DB {
	return d.db
}

// Dialect reports which SQL dialect the handle speaks.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// QueryContext executes a query with context and metrics
func (d *DB) QueryContext(ctx context.Context, queryType, query string, args ...interface{}) (*sqlx.Rows, error) {
	defer d.observe(ctx, queryType, time.Now())

	rows, err := d.db.QueryxContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("query_error")
		d.logger.Error(ctx, "[DB_QUERY_ERROR] Query failed", logging.Fields{
			"query_type": queryType,
			"query":      query,
		}, err)
		return nil, err
	}

	return rows, nil
}

// ExecContext executes a command with context and metrics
func (d *DB) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	defer d.observe(ctx, queryType, time.Now())

	result, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("exec_error")
		d.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return nil, err
	}

	return result, nil
}

// GetContext executes a query that returns a single row. sql.ErrNoRows is
// returned unlogged so callers can map it to a not-found result.
func (d *DB) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer d.observe(ctx, queryType, time.Now())

	err := d.db.GetContext(ctx, dest, d.db.Rebind(query), args...)
	if err != nil && err != sql.ErrNoRows {
		d.metrics.RecordDBError("get_error")
		d.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"query_type": queryType,
		}, err)
	}

	return err
}

// SelectContext executes a query that returns multiple rows
func (d *DB) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	defer d.observe(ctx, queryType, time.Now())

	err := d.db.SelectContext(ctx, dest, d.db.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("select_error")
		d.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}

// BeginTx begins a new transaction
func (d *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		d.metrics.RecordDBError("transaction_begin_error")
		d.logger.Error(ctx, "[DB_TX_ERROR] Failed to begin transaction", logging.Fields{}, err)
		return nil, err
	}

	return tx, nil
}

func (d *DB) observe(ctx context.Context, queryType string, start time.Time) {
	duration := time.Since(start)
	d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
	d.logger.Debug(ctx, "[DB_QUERY] Statement executed", logging.Fields{
		"query_type":  queryType,
		"duration_ms": duration.Milliseconds(),
	})
}

// monitorConnectionPool periodically updates connection pool metrics
func (d *DB) monitorConnectionPool(interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.samplePool()
		}
	}
}

func (d *DB) samplePool() {
	stats := d.db.Stats()

	d.metrics.UpdateDBConnectionPool(
		stats.InUse,
		stats.Idle,
		stats.OpenConnections,
	)

	if d.config.MaxOpenConns <= 0 {
		return
	}

	utilization := float64(stats.InUse) / float64(d.config.MaxOpenConns)
	if utilization > 0.8 {
		d.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool utilization high", logging.Fields{
			"in_use":      stats.InUse,
			"idle":        stats.Idle,
			"total":       stats.OpenConnections,
			"max_open":    d.config.MaxOpenConns,
			"utilization": fmt.Sprintf("%.2f%%", utilization*100),
		})
	}
}

// HealthCheck performs a database health check
func (d *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
