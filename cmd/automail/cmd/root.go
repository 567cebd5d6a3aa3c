// Copyright 2025 Automail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"automail/internal/classify"
	"automail/internal/cli"
	"automail/internal/config"
	"automail/internal/email"
	"automail/internal/server"
	"automail/internal/workers"
)

const (
	// Version information
	Version   = "1.0.0"
	BuildDate = "development"
)

var (
	configFile string
	debugMode  bool

	// Client flags shared by the control subcommands
	serverURL string
	format    string
	quiet     bool
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "automail",
	Short: "Email classification and labeling service",
	Long: `Automail Service v1.0.0

DESCRIPTION:
    Monitors a Gmail inbox, classifies incoming mail through a local AI
    classification service (with a rule-based fallback), and files each
    message under a category label. Processed messages leave the inbox.

CONFIGURATION:
    Configuration is done via environment variables, .env files, and
    optional YAML/TOML/JSON config files (automail.yaml):

    Gmail API Configuration:
        AUTOMAIL_GMAIL_CLIENT_ID        - OAuth2 client ID
        AUTOMAIL_GMAIL_CLIENT_SECRET    - OAuth2 client secret
        AUTOMAIL_GMAIL_REFRESH_TOKEN    - OAuth2 refresh token
        AUTOMAIL_GMAIL_ACCESS_TOKEN     - OAuth2 access token
        AUTOMAIL_GMAIL_MAX_RESULTS      - Message IDs per list page (default: 50)
        AUTOMAIL_GMAIL_REQUEST_TIMEOUT  - Per-request timeout (default: 30s)
        AUTOMAIL_GMAIL_RATE_LIMIT_DELAY - Pause between list calls (default: 100ms)

    Classifier Configuration:
        AUTOMAIL_CLASSIFIER_URL              - Classification service URL (default: http://localhost:8000)
        AUTOMAIL_CLASSIFIER_API_KEY          - API key sent as X-API-Key
        AUTOMAIL_CLASSIFIER_TIMEOUT          - Request timeout (default: 10s)
        AUTOMAIL_CLASSIFIER_RETRY_COUNT      - Retries on transient errors (default: 3)
        AUTOMAIL_CLASSIFIER_BATCH_SIZE       - Messages per batch request (default: 10)
        AUTOMAIL_CLASSIFIER_FALLBACK_ENABLED - Rule-based fallback (default: true)

    Processing Configuration:
        AUTOMAIL_PROCESSING_CHECK_INTERVAL       - Pause between cycles (default: 10s)
        AUTOMAIL_PROCESSING_MAX_PER_CYCLE        - Messages per cycle (default: 100)
        AUTOMAIL_PROCESSING_MAX_STORED           - Message store cap (default: 500)
        AUTOMAIL_PROCESSING_IDLE_TIMEOUT         - Auto-stop after idle monitoring (default: 10m)
        AUTOMAIL_PROCESSING_CONFIDENCE_THRESHOLD - Review routing threshold (default: 0.6)
        AUTOMAIL_PROCESSING_STATE_DB_PATH        - SQLite state database (default: ./automail.db)
        AUTOMAIL_PROCESSING_CATCHUP_QUERY        - Backlog search query (default: in:inbox)
        AUTOMAIL_PROCESSING_MONITOR_QUERY        - Monitoring search query (default: in:inbox is:unread)

    Labeling Configuration:
        AUTOMAIL_LABELING_PREFIX      - Label namespace prefix (default: Automail-)
        AUTOMAIL_LABELING_APPLY_DELAY - Pause between label mutations (default: 100ms)

    Server Configuration:
        AUTOMAIL_SERVER_ENABLED - Enable the local control API (default: true)
        AUTOMAIL_SERVER_HOST    - Listen host (default: localhost)
        AUTOMAIL_SERVER_PORT    - Listen port (default: 8847)

EXAMPLES:
    # Basic usage with OAuth2
    export AUTOMAIL_GMAIL_CLIENT_ID="your-client-id"
    export AUTOMAIL_GMAIL_CLIENT_SECRET="your-client-secret"
    export AUTOMAIL_GMAIL_REFRESH_TOKEN="your-refresh-token"
    automail

    # With a custom configuration file
    automail --config=automail.production.yaml

    # Inspect a running instance
    automail status
    automail messages --limit 20`,
	Version: "1.0.0",
	RunE:    runService,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	fang.Execute(context.Background(), rootCmd)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (automail.yaml is auto-discovered)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "control API address (default http://localhost:8847)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (minimal output)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
}

// newLogger builds the service logger. Terminals get text output,
// everything else gets JSON for log collectors.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadConfiguration loads configuration from files and environment variables
func loadConfiguration() (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithFile(configFile)
	}
	return config.Load()
}

// initializeClient sets up configuration, formatter, and control API client
// for the subcommands that talk to a running instance.
func initializeClient() (*cli.Config, *cli.OutputFormatter, *cli.Client, error) {
	cliConfig, err := cli.LoadConfig(serverURL, format, quiet)
	if err != nil {
		return nil, nil, nil, err
	}

	formatter := cli.NewOutputFormatterWithColor(cliConfig.Format, cliConfig.Quiet, noColor)
	client := cli.NewClient(cliConfig.ServerURL)

	return cliConfig, formatter, client, nil
}

// runService is the main execution function for the automail service
func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfiguration()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger()

	logger.Info("Starting automail service",
		"version", Version,
		"build_date", BuildDate)

	logger.Info("Configuration loaded successfully",
		"check_interval", cfg.Processing.CheckInterval,
		"classifier_url", cfg.Classifier.URL,
		"label_prefix", cfg.Labeling.Prefix)

	// Log configuration (with sensitive fields redacted)
	if configJSON, err := cfg.ToJSON(); err == nil {
		logger.Debug("Configuration details", "config", configJSON)
	}

	if !cfg.IsOAuth2Configured() {
		return fmt.Errorf("no Gmail OAuth2 credentials configured")
	}

	ctx := context.Background()

	mailbox, err := email.NewGmailClient(ctx, &email.GmailConfig{
		ClientID:       cfg.Gmail.ClientID,
		ClientSecret:   cfg.Gmail.ClientSecret,
		RefreshToken:   cfg.Gmail.RefreshToken,
		AccessToken:    cfg.Gmail.AccessToken,
		UserEmail:      cfg.Gmail.UserEmail,
		MaxResults:     cfg.Gmail.MaxResults,
		RequestTimeout: cfg.Gmail.RequestTimeout,
		RateLimitDelay: cfg.Gmail.RateLimitDelay,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Gmail client", "error", err)
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}
	defer mailbox.Close()

	logger.Info("Gmail client initialized successfully")

	store, err := email.NewStore(cfg.Processing.StateDBPath)
	if err != nil {
		logger.Error("Failed to initialize message store", "error", err)
		return fmt.Errorf("failed to initialize message store: %w", err)
	}
	defer store.Close()

	logger.Info("Message store initialized", "db_path", cfg.Processing.StateDBPath)

	classifier := classify.NewClient(&classify.Config{
		BaseURL:         cfg.Classifier.URL,
		APIKey:          cfg.Classifier.APIKey,
		Timeout:         cfg.Classifier.Timeout,
		RetryCount:      cfg.Classifier.RetryCount,
		BatchSize:       cfg.Classifier.BatchSize,
		FallbackEnabled: cfg.Classifier.FallbackEnabled,
	}, logger)

	if health, err := classifier.HealthCheck(ctx); err != nil {
		logger.Warn("Classification service unreachable, rule-based fallback will be used",
			"url", cfg.Classifier.URL,
			"error", err)
	} else {
		logger.Info("Classification service ready",
			"url", cfg.Classifier.URL,
			"model_loaded", health.ModelLoaded)
	}

	pipeline := workers.NewPipeline(&workers.PipelineConfig{
		MaxPerCycle:       cfg.Processing.MaxPerCycle,
		MaxStored:         cfg.Processing.MaxStored,
		DetailConcurrency: cfg.Processing.DetailConcurrency,
		FetchDelay:        cfg.Processing.FetchDelay,
		ContentMaxBytes:   cfg.Processing.ContentMaxBytes,
	}, mailbox, classifier, store, logger)

	labeler := workers.NewLabeler(&workers.LabelerConfig{
		ConfidenceThreshold: cfg.Processing.ConfidenceThreshold,
		Prefix:              cfg.Labeling.Prefix,
		ApplyDelay:          cfg.Labeling.ApplyDelay,
	}, mailbox, store, logger)

	scheduler := workers.NewScheduler(&workers.SchedulerConfig{
		CheckInterval: cfg.Processing.CheckInterval,
		IdleTimeout:   cfg.Processing.IdleTimeout,
		PendingLimit:  cfg.Processing.MaxPerCycle,
		CatchupQuery:  cfg.Processing.CatchupQuery,
		MonitorQuery:  cfg.Processing.MonitorQuery,
	}, pipeline, labeler, mailbox, store, logger)

	if err := scheduler.Start(ctx); err != nil {
		// The control API can start processing later, so a failed
		// initial start is not fatal.
		logger.Warn("Processing not started", "error", err)
	} else {
		logger.Info("Processing started")
	}

	apiServer := server.NewServer(cfg, scheduler, store, classifier, logger)

	if cfg.Server.Enabled {
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
	} else {
		logger.Info("Control API disabled")
	}

	logger.Info("Automail service started successfully")

	signalHandler := server.NewSignalHandler(apiServer, 10*time.Second, logger)
	signalHandler.OnShutdown(func() {
		logger.Info("Stopping processing")
		scheduler.Stop()
		scheduler.Wait()
	})
	signalHandler.WaitForShutdown()

	logger.Info("Automail service stopped gracefully")
	return nil
}
