package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kape-platform/pkg/database"
)

// Config holds all runtime settings, read from the environment
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Export   ExportConfig
	Ingest   IngestConfig
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig configures the PostgreSQL connection pool
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig configures the analytics cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string
}

// ExportConfig configures report downloads
type ExportConfig struct {
	DefaultFormat string
	SheetName     string
}

// IngestConfig configures CSV seed loading
type IngestConfig struct {
	DataDir   string
	BatchSize int
	GradeUnit string
}

// LoadConfig reads settings from the environment. A .env file in the working
// directory, when present, seeds variables that are not already set.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return fromEnv()
}

// LoadConfigFrom reads settings after loading the given env files
func LoadConfigFrom(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	r := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Host:         r.str("SERVER_HOST", "0.0.0.0"),
			Port:         r.integer("SERVER_PORT", 8080),
			ReadTimeout:  r.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: r.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  r.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            r.str("DB_HOST", "localhost"),
			Port:            r.integer("DB_PORT", 5432),
			User:            r.str("DB_USER", "kape"),
			Password:        r.str("DB_PASSWORD", ""),
			Database:        r.str("DB_NAME", "kape"),
			SSLMode:         r.str("DB_SSLMODE", "disable"),
			MaxOpenConns:    r.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    r.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: r.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     r.str("REDIS_ADDR", ""),
			Password: r.str("REDIS_PASSWORD", ""),
			DB:       r.integer("REDIS_DB", 0),
			TTL:      r.duration("REDIS_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(r.str("LOG_LEVEL", "info")),
		},
		Export: ExportConfig{
			DefaultFormat: strings.ToLower(r.str("EXPORT_FORMAT", "csv")),
			SheetName:     r.str("EXPORT_SHEET_NAME", "Report"),
		},
		Ingest: IngestConfig{
			DataDir:   r.str("INGEST_DATA_DIR", "./seed_data"),
			BatchSize: r.integer("INGEST_BATCH_SIZE", 500),
			GradeUnit: strings.ToLower(r.str("INGEST_GRADE_UNIT", "kg")),
		},
	}

	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) exceeds max open connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis TTL cannot be negative: %v", c.Redis.TTL)
	}
	switch c.Export.DefaultFormat {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("invalid export format: %q", c.Export.DefaultFormat)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be positive: %d", c.Ingest.BatchSize)
	}
	return nil
}

// Connection returns the connection settings for database.NewPostgresDB
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// envReader records the first malformed variable it sees
type envReader struct {
	err error
}

func (r *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return n
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return d
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
