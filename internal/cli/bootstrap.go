// Package cli holds the wiring shared by the wxstats binaries.
package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"wxstats/internal/config"
	"wxstats/internal/repository"
	"wxstats/pkg/database"
	"wxstats/pkg/logging"
	"wxstats/pkg/metrics"
)

// Version is stamped at build time with -ldflags "-X wxstats/internal/cli.Version=...".
var Version = "dev"

// App is a configured logger, metrics registry and open store.
type App struct {
	Config   *config.Config
	Logger   *logging.StructuredLogger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	DB       *database.DB
	Repo     repository.WeatherRepository
}

// AddStoreFlags registers the flags every binary accepts.
func AddStoreFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("db-driver", "", "Database driver: sqlite3 or postgres")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("dsn", "", "Database connection string")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: json or text")
}

// Bootstrap loads configuration, builds the logger and metrics, and opens
// the store. Callers must Close the returned App.
func Bootstrap(service string, flags *pflag.FlagSet) (*App, error) {
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.NewStructuredLoggerWithOptions(logging.Options{
		Service: service,
		Version: Version,
		Level:   level,
		Format:  cfg.Logging.Format,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace, registry)

	db, err := database.Open(cfg.DatabaseOptions(), logger, metricsCollector)
	if err != nil {
		logger.Error(context.Background(), "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
			"driver": cfg.Database.Driver,
		}, err)
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  metricsCollector,
		DB:       db,
		Repo:     repository.NewWeatherRepository(db, logger, metricsCollector),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.DB.Close()
}
