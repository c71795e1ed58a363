// Package config provides configuration management for the matching engine.
// It loads settings from environment variables with the MATCH_ prefix and
// provides sensible defaults for all configuration options.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the matchd service.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Security SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7070)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	// SQLitePath is the SQLite database file for profiles, preferences,
	// and the interaction log (default: ./data/match.db).
	SQLitePath string

	// PostgresDSN, when non-empty, enables latent-factor persistence in
	// PostgreSQL/pgvector. Empty disables persistence (in-memory model only).
	PostgresDSN string
}

// EngineConfig contains matching pipeline tunables.
type EngineConfig struct {
	// PipelineBudget is the soft wall-clock budget per ranking request
	// (default: 3s).
	PipelineBudget time.Duration

	// ScoreWorkers is the scoring worker pool size (default: 8).
	ScoreWorkers int

	// DiversityFraction is the share of the ranked list re-injected as
	// diversity picks (default: 0.15).
	DiversityFraction float64

	// LatentFactors is the latent dimensionality k (default: 12).
	LatentFactors int

	// TrainSeed seeds the model's random source for reproducible training
	// (default: 42).
	TrainSeed int64

	// CompatTablesPath optionally overrides the built-in compatibility
	// tables from a YAML file (default: "", use built-ins).
	CompatTablesPath string
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the MATCH_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("MATCH_PORT", 7070),
			Host: getEnv("MATCH_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			SQLitePath:  getEnv("MATCH_SQLITE_PATH", "./data/match.db"),
			PostgresDSN: getEnv("MATCH_POSTGRES_DSN", ""),
		},
		Engine: EngineConfig{
			PipelineBudget:    getEnvDuration("MATCH_PIPELINE_BUDGET", 3*time.Second),
			ScoreWorkers:      getEnvInt("MATCH_SCORE_WORKERS", 8),
			DiversityFraction: getEnvFloat("MATCH_DIVERSITY_FRACTION", 0.15),
			LatentFactors:     getEnvInt("MATCH_LATENT_FACTORS", 12),
			TrainSeed:         int64(getEnvInt("MATCH_TRAIN_SEED", 42)),
			CompatTablesPath:  getEnv("MATCH_COMPAT_TABLES", ""),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("MATCH_SECURITY_MODE", "development"),
			APIToken:     getEnv("MATCH_API_TOKEN", ""),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. An unparsable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "3s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
