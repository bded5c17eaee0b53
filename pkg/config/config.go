// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Database sources; nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Cleaning settings
	CategoryMapsPath string // Empty uses the embedded maps
	CSVDelimiter     rune

	// Ingest settings
	WorkerPoolSize int
	RetryAttempts  int
	RetryDelay     time.Duration
	DatasetTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables. Variables are
// first read from the given .env files, or from ./.env when none are given
// and it exists; variables already set in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	delimiter, err := getEnvAsRune("CSV_DELIMITER", ',')
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		// Default values
		CategoryMapsPath: getEnv("CATEGORY_MAPS_PATH", ""),
		CSVDelimiter:     delimiter,
		WorkerPoolSize:   getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		RetryAttempts:    getEnvAsInt("RETRY_ATTEMPTS", 3),
		RetryDelay:       time.Duration(getEnvAsInt("RETRY_DELAY_MS", 1000)) * time.Millisecond,
		DatasetTimeout:   time.Duration(getEnvAsInt("DATASET_TIMEOUT_SECONDS", 600)) * time.Second,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	// Load database configurations
	snowConfig, err := LoadSnowflakeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
	}
	cfg.Snowflake = snowConfig

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
	}
	cfg.Postgres = pgConfig

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all configuration is valid
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 0 {
		return errors.New("worker pool size cannot be negative")
	}

	if c.RetryAttempts < 0 {
		return errors.New("retry attempts cannot be negative")
	}

	if c.DatasetTimeout <= 0 {
		return errors.New("dataset timeout must be positive")
	}

	switch c.CSVDelimiter {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}

	return nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsRune(key string, defaultValue rune) (rune, error) {
	value := getEnv(key, "")
	switch {
	case value == "":
		return defaultValue, nil
	case value == `\t` || value == "tab":
		return '\t', nil
	case utf8.RuneCountInString(value) == 1:
		r, _ := utf8.DecodeRuneInString(value)
		return r, nil
	default:
		return 0, fmt.Errorf("%s must be a single character, got %q", key, value)
	}
}

// getEnvAsStringSlice parses a comma-separated list
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.Trim(strings.TrimSpace(v), `"`); v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
