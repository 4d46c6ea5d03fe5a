// internal/config/config.go
package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is the single user-visible error for an absent token
// or username. It is fatal and never retried.
var ErrMissingCredentials = errors.New("missing GITHUB_TOKEN or GITHUB_USERNAME")

// Config holds all configuration for the application.
type Config struct {
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	GithubToken    string        `mapstructure:"GITHUB_TOKEN"`
	GithubUsername string        `mapstructure:"GITHUB_USERNAME"`
	DBURL          string        `mapstructure:"DB_URL"`
	DataDir        string        `mapstructure:"DATA_DIR"`
	CacheDir       string        `mapstructure:"CACHE_DIR"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	CommitsTTL     time.Duration `mapstructure:"COMMITS_CACHE_TTL"`
	SyncCron       string        `mapstructure:"SYNC_CRON"`
}

// LoadConfig reads configuration from a .env file and/or environment
// variables. GITHUB_TOKEN and GITHUB_USERNAME are required; DB_URL is
// optional and enables the durable cache tier when present.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("CACHE_DIR", filepath.Join("data", "cache"))
	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("COMMITS_CACHE_TTL", "1h")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{"GITHUB_TOKEN", "GITHUB_USERNAME", "DB_URL", "SYNC_CRON"} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GithubToken == "" || cfg.GithubUsername == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("CACHE_TTL must be a positive duration")
	}
	if cfg.CommitsTTL <= 0 {
		return nil, errors.New("COMMITS_CACHE_TTL must be a positive duration")
	}

	return &cfg, nil
}
