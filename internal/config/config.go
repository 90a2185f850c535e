package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wxstats/pkg/database"
	"wxstats/pkg/logging"
)

// EnvPrefix prefixes every environment override, e.g. WX_DATABASE_DRIVER.
const EnvPrefix = "WX"

// Config holds application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver              string        `mapstructure:"driver"`
	SQLitePath          string        `mapstructure:"sqlite_path"`
	DSN                 string        `mapstructure:"dsn"`
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	User                string        `mapstructure:"user"`
	Password            string        `mapstructure:"password"`
	Database            string        `mapstructure:"name"`
	SSLMode             string        `mapstructure:"sslmode"`
	MaxOpenConns        int           `mapstructure:"max_open_conns"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `mapstructure:"conn_max_idle_time"`
	PoolMonitorInterval time.Duration `mapstructure:"pool_monitor_interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestionConfig holds batch ingestion configuration
type IngestionConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.sqlite_path", "./weather.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "weather")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.pool_monitor_interval", "15s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logging.FormatJSON)

	v.SetDefault("ingestion.data_dir", "./wx_data")

	v.SetDefault("cache.stats_ttl", "5m")

	v.SetDefault("metrics.namespace", "wxstats")
}

// LoadConfig resolves configuration from defaults, an optional config.yaml,
// an optional .env file, WX_ environment variables and flags, in increasing
// precedence. Only flags listed in flagKeys are bound, and only when set.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	return load(viper.New(), flags)
}

func load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wxstats")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db-driver":   "database.driver",
	"sqlite-path": "database.sqlite_path",
	"dsn":         "database.dsn",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"data-dir":    "ingestion.data_dir",
	"host":        "server.host",
	"port":        "server.port",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Validate validates the configuration
func (c *Config) Validate() error {
	dialect, err := database.ParseDialect(c.Database.Driver)
	if err != nil {
		return err
	}

	if dialect == database.Postgres && c.Database.DSN == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
	}

	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must be non-negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Logging.Format {
	case logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Cache.StatsTTL < 0 {
		return fmt.Errorf("cache stats_ttl must be non-negative")
	}

	return nil
}

// DatabaseOptions converts the database section for database.Open.
func (c *Config) DatabaseOptions() *database.Config {
	return &database.Config{
		Driver:              c.Database.Driver,
		SQLitePath:          c.Database.SQLitePath,
		DSN:                 c.Database.DSN,
		Host:                c.Database.Host,
		Port:                c.Database.Port,
		User:                c.Database.User,
		Password:            c.Database.Password,
		Database:            c.Database.Database,
		SSLMode:             c.Database.SSLMode,
		MaxOpenConns:        c.Database.MaxOpenConns,
		MaxIdleConns:        c.Database.MaxIdleConns,
		ConnMaxLifetime:     c.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     c.Database.ConnMaxIdleTime,
		PoolMonitorInterval: c.Database.PoolMonitorInterval,
	}
}

// ServerAddr returns host:port for the HTTP listener.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
