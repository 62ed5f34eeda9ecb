package config

import (
	"os"
	"strconv"

	"mipool/domain/pooling"
	"mipool/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Pooling  PoolingConfig
	Data     DataConfig
}

// DatabaseConfig holds optional pooled-run persistence settings.
// Persistence is disabled when no URL is configured.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether pooled runs should be persisted
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// PoolingConfig holds pooling behavior settings
type PoolingConfig struct {
	Method                pooling.Method
	ConfidenceLevel       float64
	MaxConcurrentAnalyses int64
}

// DataConfig holds data source settings
type DataConfig struct {
	WorkbookFile string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present, and validates it
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Pooling: PoolingConfig{
			Method:                pooling.Method(getEnvOrDefault("POOL_METHOD", string(pooling.MethodSmallSample))),
			ConfidenceLevel:       getEnvFloatOrDefault("CONFIDENCE_LEVEL", 0.95),
			MaxConcurrentAnalyses: int64(getEnvIntOrDefault("MAX_CONCURRENT_ANALYSES", 0)),
		},
		Data: DataConfig{
			WorkbookFile: os.Getenv("ANALYSES_FILE"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	// Method is deliberately not validated: unrecognized values select the
	// classical Rubin degrees of freedom downstream.
	if l := config.Pooling.ConfidenceLevel; l <= 0 || l >= 1 {
		return errors.New("CONFIG_INVALID", "CONFIDENCE_LEVEL must be strictly between 0 and 1")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
