// Package config is the single place environment variables are read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Env string // development, staging, production

	Database DatabaseConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	API      APIConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL    string
	Schema string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration. Redis guards scheduled runs with a
// lock; the pipeline runs fine without it.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// PipelineConfig holds transform defaults and rule thresholds. The staleness
// tiers are configuration: the logic of the rules is fixed, the parameters
// are not.
type PipelineConfig struct {
	Frequency     string
	BackfillYears int
	Workers       int

	SoftStaleDays     int
	HardExpiryDays    int
	PriceFallbackDays int
	PriceStaleDays    int
	CapMinSample      int
	CapPercentile     float64
	CapFixed          float64

	// Writer throttle: upsert batches per second against the shared store.
	WriteBatchSize  int
	WriteRatePerSec float64
	ScheduleSpec    string
	ScheduleLockTTL time.Duration
}

// APIConfig holds the read-only ops API settings.
type APIConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables, trying .env first.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Schema:          getEnv("DB_SCHEMA", "systematic_equity"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Pipeline: PipelineConfig{
			Frequency:     getEnv("PIPELINE_FREQUENCY", "daily"),
			BackfillYears: getEnvAsInt("PIPELINE_BACKFILL_YEARS", 2),
			Workers:       getEnvAsInt("PIPELINE_WORKERS", 8),

			SoftStaleDays:     getEnvAsInt("RULE_SOFT_STALE_DAYS", 270),
			HardExpiryDays:    getEnvAsInt("RULE_HARD_EXPIRY_DAYS", 365),
			PriceFallbackDays: getEnvAsInt("RULE_PRICE_FALLBACK_DAYS", 3),
			PriceStaleDays:    getEnvAsInt("RULE_PRICE_STALE_DAYS", 1),
			CapMinSample:      getEnvAsInt("RULE_CAP_MIN_SAMPLE", 50),
			CapPercentile:     getEnvAsFloat("RULE_CAP_PERCENTILE", 0.99),
			CapFixed:          getEnvAsFloat("RULE_CAP_FIXED", 100.0),

			WriteBatchSize:  getEnvAsInt("WRITE_BATCH_SIZE", 500),
			WriteRatePerSec: getEnvAsFloat("WRITE_RATE_PER_SEC", 10),
			ScheduleSpec:    getEnv("PIPELINE_SCHEDULE", "0 30 6 * * *"),
			ScheduleLockTTL: getEnvAsDuration("PIPELINE_LOCK_TTL", "2h"),
		},

		API: APIConfig{
			Port:    getEnv("API_PORT", "8098"),
			Enabled: getEnvAsBool("API_ENABLED", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Pipeline.SoftStaleDays > c.Pipeline.HardExpiryDays {
		return fmt.Errorf("RULE_SOFT_STALE_DAYS must not exceed RULE_HARD_EXPIRY_DAYS")
	}
	if c.Pipeline.CapPercentile <= 0 || c.Pipeline.CapPercentile > 1 {
		return fmt.Errorf("RULE_CAP_PERCENTILE must be in (0, 1]")
	}
	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
