// Package config loads EmailBison CLI settings with the precedence
// flags > environment > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the hosted EmailBison endpoint used when nothing else
// is configured.
const DefaultBaseURL = "https://dedi.emailbison.com"

// Config holds all configuration for the CLI.
type Config struct {
	BaseURL         string `yaml:"base_url"`
	APIToken        string `yaml:"api_token"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Retries         int    `yaml:"retries"`
	DefaultTimezone string `yaml:"default_timezone"`

	// Endpoint paths (override only if EmailBison changes these)
	CampaignsPath    string `yaml:"campaigns_path"`
	CampaignsV11Path string `yaml:"campaigns_v11_path"`
	SenderEmailsPath string `yaml:"sender_emails_path"`
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ErrMissingToken is returned when no API token could be resolved from any
// configuration source.
var ErrMissingToken = errors.New(
	"missing api_token: set EMAILBISON_API_TOKEN or add api_token to the config file")

// DefaultPaths returns candidate config file locations, lowest precedence
// first: XDG config dir, then a config file in the working directory.
func DefaultPaths() []string {
	var paths []string
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "emailbison", "config.yaml"))
	}
	paths = append(paths, "emailbison.yaml")
	return paths
}

// Load reads and parses a single configuration file. A missing file is not
// an error; it yields a zero config to be filled by env vars and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so the token can live in .env locally and in real env vars on CI.
// When path is empty, the DefaultPaths candidates are merged in order.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		for _, candidate := range DefaultPaths() {
			loaded, err := Load(candidate)
			if err != nil {
				return nil, err
			}
			merge(cfg, loaded)
		}
	}

	// Override with environment variables if present
	if v := os.Getenv("EMAILBISON_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("EMAILBISON_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("EMAILBISON_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("EMAILBISON_TIMEOUT_SECONDS must be an integer: %w", err)
		}
		cfg.TimeoutSeconds = n
	}
	if v := os.Getenv("EMAILBISON_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("EMAILBISON_RETRIES must be an integer: %w", err)
		}
		cfg.Retries = n
	}
	if v := os.Getenv("EMAILBISON_DEFAULT_TIMEZONE"); v != "" {
		cfg.DefaultTimezone = v
	}
	if v := os.Getenv("EMAILBISON_CAMPAIGNS_PATH"); v != "" {
		cfg.CampaignsPath = v
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks that the configuration is usable for API calls.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return ErrMissingToken
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 20
	}
	if cfg.CampaignsPath == "" {
		cfg.CampaignsPath = "/api/campaigns"
	}
	if cfg.CampaignsV11Path == "" {
		cfg.CampaignsV11Path = "/api/campaigns/v1.1"
	}
	if cfg.SenderEmailsPath == "" {
		cfg.SenderEmailsPath = "/api/sender-emails"
	}
}

// merge copies non-zero fields of src over dst, so later (higher
// precedence) files win per-field.
func merge(dst, src *Config) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.APIToken != "" {
		dst.APIToken = src.APIToken
	}
	if src.TimeoutSeconds != 0 {
		dst.TimeoutSeconds = src.TimeoutSeconds
	}
	if src.Retries != 0 {
		dst.Retries = src.Retries
	}
	if src.DefaultTimezone != "" {
		dst.DefaultTimezone = src.DefaultTimezone
	}
	if src.CampaignsPath != "" {
		dst.CampaignsPath = src.CampaignsPath
	}
	if src.CampaignsV11Path != "" {
		dst.CampaignsV11Path = src.CampaignsV11Path
	}
	if src.SenderEmailsPath != "" {
		dst.SenderEmailsPath = src.SenderEmailsPath
	}
}
