// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/jonathan/leadform/internal/geo"
)

// Config represents the CLI configuration that can be loaded from a JSON file
// or the environment. All fields are optional; missing values use defaults or
// must be provided via CLI flags.
type Config struct {
	// Page
	PageURL   string `json:"page_url,omitempty" env:"LEADFORM_PAGE_URL" validate:"omitempty,url"` // URL the form is served from
	Locale    string `json:"locale,omitempty" env:"LEADFORM_LOCALE"`                              // Browser locale reported in the language field
	CookieJar string `json:"cookie_jar,omitempty" env:"LEADFORM_COOKIE_JAR"`                      // JSON file holding the visitor's cookies
	RulesFile string `json:"rules_file,omitempty" env:"LEADFORM_RULES_FILE"`                      // YAML rule table overriding the defaults

	// Outbound services
	IPEchoURL      string `json:"ip_echo_url,omitempty" env:"LEADFORM_IP_ECHO_URL" validate:"omitempty,url"`
	GeoLookupURL   string `json:"geo_lookup_url,omitempty" env:"LEADFORM_GEO_LOOKUP_URL" validate:"omitempty,url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" env:"LEADFORM_TIMEOUT_SECONDS" validate:"gte=0"`

	// Capture endpoint
	Port        int    `json:"port,omitempty" env:"LEADFORM_PORT" validate:"gte=0,lte=65535"`
	DatabaseURL string `json:"database_url,omitempty" env:"DATABASE_URL"` // PostgreSQL connection URL

	// Behavior
	SkipGeo    bool `json:"skip_geo,omitempty" env:"LEADFORM_SKIP_GEO"`       // Do not start the geo lookup
	UseBrowser bool `json:"use_browser,omitempty" env:"LEADFORM_USE_BROWSER"` // Render pages with a headless browser
	Verbose    bool `json:"verbose,omitempty" env:"LEADFORM_VERBOSE"`         // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Locale:         "en-US",
		IPEchoURL:      geo.DefaultIPEchoURL,
		GeoLookupURL:   geo.DefaultLookupURL,
		TimeoutSeconds: 30,
		Port:           8080,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv loads configuration from environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Resolve layers the config file (when path is set) over the environment
// over the defaults, and validates the result.
func Resolve(path string) (*Config, error) {
	fromEnv, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if path != "" {
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	merged := cfg.MergeWithDefaults(fromEnv.MergeWithDefaults(Defaults()))
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: rules file not found: %s", c.RulesFile)
		}
	}

	return nil
}

// Timeout returns the outbound request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.PageURL == "" {
		result.PageURL = defaults.PageURL
	}
	if result.Locale == "" {
		result.Locale = defaults.Locale
	}
	if result.CookieJar == "" {
		result.CookieJar = defaults.CookieJar
	}
	if result.RulesFile == "" {
		result.RulesFile = defaults.RulesFile
	}
	if result.IPEchoURL == "" {
		result.IPEchoURL = defaults.IPEchoURL
	}
	if result.GeoLookupURL == "" {
		result.GeoLookupURL = defaults.GeoLookupURL
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: a true anywhere wins
	result.SkipGeo = result.SkipGeo || defaults.SkipGeo
	result.UseBrowser = result.UseBrowser || defaults.UseBrowser
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
