// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Externally visible base URL of this gateway (fetch_url echoes,
	// challenge resource fields)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Settlement facilitator
	FacilitatorURL    string `env:"FACILITATOR_URL,required"`
	FacilitatorSecret string `env:"FACILITATOR_SECRET,required"`

	// Shared bearer credential for gateway-to-publisher calls
	PublisherBearerToken string `env:"PUBLISHER_BEARER_TOKEN,required"`

	// Payment challenge parameters
	MerchantWalletAddress string `env:"MERCHANT_WALLET_ADDRESS,required"`
	PayNetwork            string `env:"PAY_NETWORK" envDefault:"avalanche-fuji"`
	AssetAddress          string `env:"ASSET_ADDRESS" envDefault:"0x5425890298aed601595a70AB815c96711a31Bc65"`
	AssetName             string `env:"ASSET_NAME" envDefault:"USD Coin"`
	AssetVersion          string `env:"ASSET_VERSION" envDefault:"2"`
	SettlementTimeout     int    `env:"SETTLEMENT_TIMEOUT_SECONDS" envDefault:"60"`

	// Upstream publisher fetch timeout
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`

	// Publisher/endpoint snapshot refresh cadence
	SnapshotRefreshInterval time.Duration `env:"SNAPSHOT_REFRESH_INTERVAL" envDefault:"30s"`

	// Usage worker consumer name (unique per instance)
	UsageConsumerName string `env:"USAGE_CONSUMER_NAME" envDefault:"worker-1"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
