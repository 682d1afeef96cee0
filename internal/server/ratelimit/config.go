package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

type envConfig struct {
	Enabled         bool          `env:"LEADFORM_RATE_LIMIT_ENABLED" envDefault:"true"`
	DefaultLimit    int           `env:"LEADFORM_RATE_LIMIT_DEFAULT_LIMIT" envDefault:"600"`
	DefaultWindow   time.Duration `env:"LEADFORM_RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
	CleanupInterval time.Duration `env:"LEADFORM_RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
	SubmitLimit     int           `env:"LEADFORM_RATE_LIMIT_SUBMIT_LIMIT" envDefault:"30"`
	Whitelist       []string      `env:"LEADFORM_RATE_LIMIT_WHITELIST" envSeparator:","`
	Blacklist       []string      `env:"LEADFORM_RATE_LIMIT_BLACKLIST" envSeparator:","`
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() (*Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse rate limit env: %w", err)
	}
	if !raw.Enabled {
		return &Config{Enabled: false}, nil
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    raw.DefaultLimit,
		DefaultWindow:   raw.DefaultWindow,
		CleanupInterval: raw.CleanupInterval,
		Whitelist:       ipSet(raw.Whitelist),
		Blacklist:       ipSet(raw.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(raw.SubmitLimit),
	}, nil
}

// DefaultEndpointConfigs returns the endpoint-specific configurations. Form
// posts get the strictest limit since each one is journaled.
func DefaultEndpointConfigs(submitLimit int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/submit", Method: "POST", Limit: submitLimit, Window: time.Minute, Burst: max(submitLimit/6, 1)},
		{Path: "/submissions/", Method: "GET", Limit: 120, Window: time.Minute, Burst: 20},
		// Health check (unlimited) is handled by special case in matcher
	}
}

// ipSet turns a list of addresses into a lookup set, ignoring blanks.
func ipSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
