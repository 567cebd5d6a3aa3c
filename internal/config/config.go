package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config holds all application configuration
type Config struct {
	Gmail      GmailConfig      `json:"gmail"`
	Classifier ClassifierConfig `json:"classifier"`
	Processing ProcessingConfig `json:"processing"`
	Labeling   LabelingConfig   `json:"labeling"`
	Server     ServerConfig     `json:"server"`
}

// GmailConfig holds mailbox credentials and request limits
type GmailConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	UserEmail    string `json:"user_email"`

	MaxResults     int64         `json:"max_results"`
	RequestTimeout time.Duration `json:"request_timeout"`
	RateLimitDelay time.Duration `json:"rate_limit_delay"`
}

// ClassifierConfig holds classification service settings
type ClassifierConfig struct {
	URL             string        `json:"url"`
	APIKey          string        `json:"api_key"`
	Timeout         time.Duration `json:"timeout"`
	RetryCount      int           `json:"retry_count"`
	BatchSize       int           `json:"batch_size"`
	FallbackEnabled bool          `json:"fallback_enabled"`
}

// ProcessingConfig holds ingestion and scheduling settings
type ProcessingConfig struct {
	CheckInterval       time.Duration `json:"check_interval"`
	MaxPerCycle         int           `json:"max_per_cycle"`
	MaxStored           int           `json:"max_stored"`
	IdleTimeout         time.Duration `json:"idle_timeout"`
	DetailConcurrency   int           `json:"detail_concurrency"`
	FetchDelay          time.Duration `json:"fetch_delay"`
	ContentMaxBytes     int           `json:"content_max_bytes"`
	StateDBPath         string        `json:"state_db_path"`
	CatchupQuery        string        `json:"catchup_query"`
	MonitorQuery        string        `json:"monitor_query"`
	DisableRateLimit    bool          `json:"disable_rate_limit"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
}

// LabelingConfig holds label naming and pacing settings
type LabelingConfig struct {
	Prefix     string        `json:"prefix"`
	ApplyDelay time.Duration `json:"apply_delay"`
}

// ServerConfig holds the local control API settings
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    string `json:"port"`
}

// Addr returns the listen address for the control API
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// GetDisableRateLimit implements the rate limiter's Config interface
func (c *Config) GetDisableRateLimit() bool {
	return c.Processing.DisableRateLimit
}

// IsOAuth2Configured reports whether Gmail credentials are present
func (c *Config) IsOAuth2Configured() bool {
	return c.Gmail.ClientID != "" && c.Gmail.ClientSecret != "" && c.Gmail.RefreshToken != ""
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Classifier.URL == "" {
		return fmt.Errorf("classifier url cannot be empty")
	}

	if c.Classifier.BatchSize <= 0 {
		return fmt.Errorf("classifier batch size must be positive, got %d", c.Classifier.BatchSize)
	}

	if c.Processing.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %v", c.Processing.CheckInterval)
	}

	if c.Processing.MaxPerCycle <= 0 {
		return fmt.Errorf("max per cycle must be positive, got %d", c.Processing.MaxPerCycle)
	}

	if c.Processing.MaxStored <= 0 {
		return fmt.Errorf("max stored must be positive, got %d", c.Processing.MaxStored)
	}

	if c.Processing.ConfidenceThreshold <= 0 || c.Processing.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %g", c.Processing.ConfidenceThreshold)
	}

	if c.Labeling.Prefix == "" {
		return fmt.Errorf("label prefix cannot be empty")
	}

	if c.Server.Enabled && c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	return nil
}

// ToJSON renders the configuration with credentials redacted
func (c *Config) ToJSON() (string, error) {
	redacted := *c
	if redacted.Gmail.ClientSecret != "" {
		redacted.Gmail.ClientSecret = "[REDACTED]"
	}
	if redacted.Gmail.RefreshToken != "" {
		redacted.Gmail.RefreshToken = "[REDACTED]"
	}
	if redacted.Gmail.AccessToken != "" {
		redacted.Gmail.AccessToken = "[REDACTED]"
	}
	if redacted.Classifier.APIKey != "" {
		redacted.Classifier.APIKey = "[REDACTED]"
	}

	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return string(data), nil
}
