package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadWithViper loads application configuration using Viper
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	setupEnvBinding(v)

	if err := loadConfigFile(v); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config := &Config{}
	if err := unmarshalConfig(v, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for all configuration sections
func setDefaults(v *viper.Viper) {
	// Gmail defaults
	v.SetDefault("gmail.max_results", 50)
	v.SetDefault("gmail.request_timeout", "30s")
	v.SetDefault("gmail.rate_limit_delay", "100ms")

	// Classifier defaults
	v.SetDefault("classifier.url", "http://localhost:8000")
	v.SetDefault("classifier.timeout", "10s")
	v.SetDefault("classifier.retry_count", 3)
	v.SetDefault("classifier.batch_size", 10)
	v.SetDefault("classifier.fallback_enabled", true)

	// Processing defaults
	v.SetDefault("processing.check_interval", "10s")
	v.SetDefault("processing.max_per_cycle", 100)
	v.SetDefault("processing.max_stored", 500)
	v.SetDefault("processing.idle_timeout", "10m")
	v.SetDefault("processing.detail_concurrency", 10)
	v.SetDefault("processing.fetch_delay", "50ms")
	v.SetDefault("processing.content_max_bytes", 8192)
	v.SetDefault("processing.state_db_path", "./automail.db")
	v.SetDefault("processing.catchup_query", "in:inbox")
	v.SetDefault("processing.monitor_query", "in:inbox is:unread")
	v.SetDefault("processing.disable_rate_limit", false)
	v.SetDefault("processing.confidence_threshold", 0.6)

	// Labeling defaults
	v.SetDefault("labeling.prefix", "Automail-")
	v.SetDefault("labeling.apply_delay", "100ms")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8847")
}

// setupEnvBinding sets up environment variable binding
func setupEnvBinding(v *viper.Viper) {
	v.SetEnvPrefix("AUTOMAIL")
	v.AutomaticEnv()

	envBindings := map[string]string{
		// Gmail
		"gmail.client_id":        "GMAIL_CLIENT_ID",
		"gmail.client_secret":    "GMAIL_CLIENT_SECRET",
		"gmail.refresh_token":    "GMAIL_REFRESH_TOKEN",
		"gmail.access_token":     "GMAIL_ACCESS_TOKEN",
		"gmail.user_email":       "GMAIL_USER_EMAIL",
		"gmail.max_results":      "GMAIL_MAX_RESULTS",
		"gmail.request_timeout":  "GMAIL_REQUEST_TIMEOUT",
		"gmail.rate_limit_delay": "GMAIL_RATE_LIMIT_DELAY",

		// Classifier
		"classifier.url":              "CLASSIFIER_URL",
		"classifier.api_key":          "CLASSIFIER_API_KEY",
		"classifier.timeout":          "CLASSIFIER_TIMEOUT",
		"classifier.retry_count":      "CLASSIFIER_RETRY_COUNT",
		"classifier.batch_size":       "CLASSIFIER_BATCH_SIZE",
		"classifier.fallback_enabled": "CLASSIFIER_FALLBACK_ENABLED",

		// Processing
		"processing.check_interval":       "PROCESSING_CHECK_INTERVAL",
		"processing.max_per_cycle":        "PROCESSING_MAX_PER_CYCLE",
		"processing.max_stored":           "PROCESSING_MAX_STORED",
		"processing.idle_timeout":         "PROCESSING_IDLE_TIMEOUT",
		"processing.detail_concurrency":   "PROCESSING_DETAIL_CONCURRENCY",
		"processing.fetch_delay":          "PROCESSING_FETCH_DELAY",
		"processing.content_max_bytes":    "PROCESSING_CONTENT_MAX_BYTES",
		"processing.state_db_path":        "PROCESSING_STATE_DB_PATH",
		"processing.catchup_query":        "PROCESSING_CATCHUP_QUERY",
		"processing.monitor_query":        "PROCESSING_MONITOR_QUERY",
		"processing.disable_rate_limit":   "PROCESSING_DISABLE_RATE_LIMIT",
		"processing.confidence_threshold": "PROCESSING_CONFIDENCE_THRESHOLD",

		// Labeling
		"labeling.prefix":      "LABELING_PREFIX",
		"labeling.apply_delay": "LABELING_APPLY_DELAY",

		// Server
		"server.enabled": "SERVER_ENABLED",
		"server.host":    "SERVER_HOST",
		"server.port":    "SERVER_PORT",
	}

	for configKey, envSuffix := range envBindings {
		v.BindEnv(configKey, "AUTOMAIL_"+envSuffix)
	}
}

// loadConfigFile loads configuration file if it exists
func loadConfigFile(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.automail")
		v.SetConfigName("automail")
	}

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return err
		}
	}

	return nil
}

// unmarshalConfig unmarshals Viper configuration into the Config struct
func unmarshalConfig(v *viper.Viper, config *Config) error {
	config.Gmail.ClientID = v.GetString("gmail.client_id")
	config.Gmail.ClientSecret = v.GetString("gmail.client_secret")
	config.Gmail.RefreshToken = v.GetString("gmail.refresh_token")
	config.Gmail.AccessToken = v.GetString("gmail.access_token")
	config.Gmail.UserEmail = v.GetString("gmail.user_email")
	config.Gmail.MaxResults = v.GetInt64("gmail.max_results")

	var err error
	config.Gmail.RequestTimeout, err = time.ParseDuration(v.GetString("gmail.request_timeout"))
	if err != nil {
		return fmt.Errorf("invalid gmail request timeout: %w", err)
	}

	config.Gmail.RateLimitDelay, err = time.ParseDuration(v.GetString("gmail.rate_limit_delay"))
	if err != nil {
		return fmt.Errorf("invalid gmail rate limit delay: %w", err)
	}

	config.Classifier.URL = v.GetString("classifier.url")
	config.Classifier.APIKey = v.GetString("classifier.api_key")
	config.Classifier.RetryCount = v.GetInt("classifier.retry_count")
	config.Classifier.BatchSize = v.GetInt("classifier.batch_size")
	config.Classifier.FallbackEnabled = v.GetBool("classifier.fallback_enabled")

	config.Classifier.Timeout, err = time.ParseDuration(v.GetString("classifier.timeout"))
	if err != nil {
		return fmt.Errorf("invalid classifier timeout: %w", err)
	}

	config.Processing.CheckInterval, err = time.ParseDuration(v.GetString("processing.check_interval"))
	if err != nil {
		return fmt.Errorf("invalid processing check interval: %w", err)
	}

	config.Processing.IdleTimeout, err = time.ParseDuration(v.GetString("processing.idle_timeout"))
	if err != nil {
		return fmt.Errorf("invalid processing idle timeout: %w", err)
	}

	config.Processing.FetchDelay, err = time.ParseDuration(v.GetString("processing.fetch_delay"))
	if err != nil {
		return fmt.Errorf("invalid processing fetch delay: %w", err)
	}

	config.Processing.MaxPerCycle = v.GetInt("processing.max_per_cycle")
	config.Processing.MaxStored = v.GetInt("processing.max_stored")
	config.Processing.DetailConcurrency = v.GetInt("processing.detail_concurrency")
	config.Processing.ContentMaxBytes = v.GetInt("processing.content_max_bytes")
	config.Processing.StateDBPath = v.GetString("processing.state_db_path")
	config.Processing.CatchupQuery = v.GetString("processing.catchup_query")
	config.Processing.MonitorQuery = v.GetString("processing.monitor_query")
	config.Processing.DisableRateLimit = v.GetBool("processing.disable_rate_limit")
	config.Processing.ConfidenceThreshold = v.GetFloat64("processing.confidence_threshold")

	config.Labeling.Prefix = v.GetString("labeling.prefix")
	config.Labeling.ApplyDelay, err = time.ParseDuration(v.GetString("labeling.apply_delay"))
	if err != nil {
		return fmt.Errorf("invalid labeling apply delay: %w", err)
	}

	config.Server.Enabled = v.GetBool("server.enabled")
	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetString("server.port")

	return nil
}

// Load loads configuration using a fresh Viper instance.
// A local .env file, if present, seeds the environment first.
func Load() (*Config, error) {
	LoadEnvFile(".env")

	v := viper.New()
	return LoadWithViper(v)
}

// LoadWithFile loads configuration from a specific file
func LoadWithFile(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	return LoadWithViper(v)
}
