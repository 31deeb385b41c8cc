// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	threshold := cfg.Matching.AutoConfirmThreshold
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Fees          FeesConfig          `yaml:"fees"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig holds reconciliation thresholds.
// Zero values are replaced by defaults in applyDefaults.
type MatchingConfig struct {
	AutoConfirmThreshold float64 `yaml:"auto_confirm_threshold"`
	AmbiguityMargin      float64 `yaml:"ambiguity_margin"`
	SuggestionFloor      float64 `yaml:"suggestion_floor"`
	SubsetMaxSize        int     `yaml:"subset_max_size"`
	SubsetCandidatePool  int     `yaml:"subset_candidate_pool"`
	DuplicateWindowDays  int     `yaml:"duplicate_window_days"`
}

// FeesConfig holds externally decided fee constants.
// The reminder fee is the fixed amount charged when a late payment is resolved.
type FeesConfig struct {
	ReminderFeeCents int64 `yaml:"reminder_fee_cents"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("RECON_PORT", 8080),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("RECON_DB_PATH", "recon.db"),
		},
		Matching: MatchingConfig{
			DuplicateWindowDays: getEnvInt("RECON_DUPLICATE_WINDOW_DAYS", 7),
		},
		Fees: FeesConfig{
			ReminderFeeCents: int64(getEnvInt("RECON_REMINDER_FEE_CENTS", 500)),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills zero values with sensible defaults
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "recon.db"
	}
	if c.Matching.AutoConfirmThreshold == 0 {
		c.Matching.AutoConfirmThreshold = 0.80
	}
	if c.Matching.AmbiguityMargin == 0 {
		c.Matching.AmbiguityMargin = 0.05
	}
	if c.Matching.SuggestionFloor == 0 {
		c.Matching.SuggestionFloor = 0.10
	}
	if c.Matching.SubsetMaxSize == 0 {
		c.Matching.SubsetMaxSize = 3
	}
	if c.Matching.SubsetCandidatePool == 0 {
		c.Matching.SubsetCandidatePool = 12
	}
	if c.Matching.DuplicateWindowDays == 0 {
		c.Matching.DuplicateWindowDays = 7
	}
	if c.Fees.ReminderFeeCents == 0 {
		c.Fees.ReminderFeeCents = 500
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
