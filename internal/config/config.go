// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Run lock backends.
const (
	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Image backends.
const (
	ImagesFile = "file"
	ImagesS3   = "s3"
)

// Config holds all configuration for the application
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Redis      RedisConfig      `yaml:"redis"`
	Runner     RunnerConfig     `yaml:"runner"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`
	Schedules  []ScheduleConfig `yaml:"schedules"`
}

// StorageConfig selects the backend of the ledger, definitions, variables and params.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite or postgres
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	DSN           string `yaml:"dsn"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// SQLiteConfig holds the embedded database settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ClickHouseConfig holds ClickHouse settings. When enabled, datasets live in ClickHouse.
type ClickHouseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DSN           string `yaml:"dsn"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// RedisConfig holds Redis settings used by the distributed run lock
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RunnerConfig holds report run settings
type RunnerConfig struct {
	ToleranceDays  int    `yaml:"tolerance_days"`
	Lock           string `yaml:"lock"` // local, redis or postgres
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the Redis lock TTL.
func (c RunnerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ArtifactsConfig holds rendered image storage settings
type ArtifactsConfig struct {
	Images string   `yaml:"images"` // file or s3
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds S3 bucket settings
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScheduleConfig runs one report periodically
type ScheduleConfig struct {
	Report          string   `yaml:"report"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	ToleranceDays   *int     `yaml:"tolerance_days"`
	Modules         []string `yaml:"modules"`
}

// Interval returns the schedule interval.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendSQLite
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "report-assembler.db"
	}
	if cfg.Runner.ToleranceDays == 0 {
		cfg.Runner.ToleranceDays = 30
	}
	if cfg.Runner.Lock == "" {
		cfg.Runner.Lock = LockLocal
	}
	if cfg.Runner.LockTTLSeconds == 0 {
		cfg.Runner.LockTTLSeconds = 300
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Artifacts.Images == "" {
		cfg.Artifacts.Images = ImagesFile
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "artifacts"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "report_assembler"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	for i := range cfg.Schedules {
		if cfg.Schedules[i].IntervalMinutes == 0 {
			cfg.Schedules[i].IntervalMinutes = 60
		}
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is loaded first when present.
// An empty path starts from Default.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.ClickHouse.DSN = v
		cfg.ClickHouse.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RUN_LOCK"); v != "" {
		cfg.Runner.Lock = v
	}
	if v := os.Getenv("TOLERANCE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TOLERANCE_DAYS: %w", err)
		}
		cfg.Runner.ToleranceDays = days
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("ARTIFACTS_S3_BUCKET"); v != "" {
		cfg.Artifacts.S3.Bucket = v
		cfg.Artifacts.Images = ImagesS3
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Artifacts.S3.Region == "" {
		cfg.Artifacts.S3.Region = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("storage backend postgres requires database.dsn")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Runner.Lock {
	case LockLocal, LockRedis:
	case LockPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres run lock requires database.dsn")
		}
	default:
		return fmt.Errorf("unknown run lock %q", c.Runner.Lock)
	}
	if c.Runner.ToleranceDays < 0 {
		return fmt.Errorf("runner.tolerance_days must not be negative")
	}

	if c.ClickHouse.Enabled && c.ClickHouse.DSN == "" {
		return fmt.Errorf("clickhouse enabled without dsn")
	}

	switch c.Artifacts.Images {
	case ImagesFile:
	case ImagesS3:
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("s3 images require artifacts.s3.bucket")
		}
	default:
		return fmt.Errorf("unknown image backend %q", c.Artifacts.Images)
	}

	seen := make(map[string]bool, len(c.Schedules))
	for _, s := range c.Schedules {
		if s.Report == "" {
			return fmt.Errorf("schedule without report")
		}
		if seen[s.Report] {
			return fmt.Errorf("report %s scheduled twice", s.Report)
		}
		seen[s.Report] = true
		if s.IntervalMinutes < 0 {
			return fmt.Errorf("schedule %s: negative interval", s.Report)
		}
	}
	return nil
}
