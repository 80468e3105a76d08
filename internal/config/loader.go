package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "syncd.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SYNCD_PORT")
	setString(&cfg.Server.CORSOrigin, "SYNCD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SYNCD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SYNCD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SYNCD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SYNCD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SYNCD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "SYNCD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SYNCD_LOG_SERVICE")
	setDuration(&cfg.Upstream.MinInterval, "SYNCD_UPSTREAM_MIN_INTERVAL")
	setInt(&cfg.Upstream.MaxRetries, "SYNCD_UPSTREAM_MAX_RETRIES")
	setDuration(&cfg.Upstream.InitialDelay, "SYNCD_UPSTREAM_INITIAL_DELAY")
	setInt(&cfg.Upstream.PageSize, "SYNCD_UPSTREAM_PAGE_SIZE")
	setInt(&cfg.Breaker.MaxFailures, "SYNCD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SYNCD_BREAKER_TIMEOUT")
	setDuration(&cfg.Sync.AutoThreshold, "SYNCD_AUTO_THRESHOLD")
	setDuration(&cfg.Sync.CheckInterval, "SYNCD_CHECK_INTERVAL")
	setInt(&cfg.Sync.Workers, "SYNCD_WORKERS")
	setDuration(&cfg.Sync.StaleRunAfter, "SYNCD_STALE_RUN_AFTER")
	setInt(&cfg.Sync.RunHistoryLimit, "SYNCD_RUN_HISTORY_LIMIT")
	setInt64(&cfg.Cache.MaxSizeMB, "SYNCD_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SYNCD_CACHE_TTL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Upstream.MinInterval <= 0 {
		return errors.New("upstream.min_interval must be positive")
	}
	if cfg.Upstream.MaxRetries < 1 {
		return errors.New("upstream.max_retries must be >= 1")
	}
	if cfg.Upstream.PageSize < 1 {
		return errors.New("upstream.page_size must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Sync.Workers < 1 {
		return errors.New("sync.workers must be >= 1")
	}
	if cfg.Sync.AutoThreshold <= 0 {
		return errors.New("sync.auto_threshold must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
