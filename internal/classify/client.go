package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"automail/internal/httpx"
)

// Config configures the classifier service client
type Config struct {
	BaseURL         string        `json:"base_url"`
	APIKey          string        `json:"api_key"`
	Timeout         time.Duration `json:"timeout"`
	RetryCount      int           `json:"retry_count"`
	BatchSize       int           `json:"batch_size"`
	FallbackEnabled bool          `json:"fallback_enabled"`
}

// DefaultConfig returns the default classifier client configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:8000",
		Timeout:         10 * time.Second,
		RetryCount:      3,
		BatchSize:       10,
		FallbackEnabled: true,
	}
}

// Client calls the remote AI classification service, falling back to
// rule-based classification when the service cannot answer.
type Client struct {
	config     *Config
	httpClient *httpx.Client
	logger     *slog.Logger
}

// NewClient creates a classifier client
func NewClient(config *Config, logger *slog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	retry := httpx.NewTransport(nil)
	retry.MaxRetries = config.RetryCount
	retry.OnRetry = func(attempt int, delay time.Duration, reason string) {
		logger.Warn("Retrying classifier request",
			"attempt", attempt,
			"delay", delay,
			"reason", reason)
	}

	// Timeouts are applied per request so batch calls can get a larger budget
	return &Client{
		config:     config,
		httpClient: httpx.NewClient(retry, 0),
		logger:     logger,
	}
}

type classifyRequest struct {
	Content string `json:"content"`
	Subject string `json:"subject"`
}

type batchClassifyRequest struct {
	Emails []classifyRequest `json:"emails"`
}

type batchClassifyResponse struct {
	Results []Result `json:"results"`
}

// Classify classifies a single message. It never returns an error: any
// failure produces a fallback result instead.
func (c *Client) Classify(ctx context.Context, subject, content string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result Result
	err := c.post(ctx, "/classify", classifyRequest{Content: content, Subject: subject}, &result)
	if err != nil {
		c.logger.Warn("Classification request failed, using fallback",
			"error", err)
		return c.fallback(subject, content)
	}

	return result
}

// BatchClassify classifies messages in sub-batches. A failed sub-batch
// degrades to rule-based results without affecting its siblings, so the
// returned slice always matches the input length and order.
func (c *Client) BatchClassify(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, 0, len(inputs))

	for start := 0; start < len(inputs); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		results = append(results, c.classifyBatch(ctx, inputs[start:end])...)
	}

	return results
}

// classifyBatch classifies one sub-batch against the remote service
func (c *Client) classifyBatch(ctx context.Context, batch []Input) []Result {
	req := batchClassifyRequest{Emails: make([]classifyRequest, len(batch))}
	for i, input := range batch {
		req.Emails[i] = classifyRequest{Content: input.Content, Subject: input.Subject}
	}

	// Batches get double the single-message budget
	ctx, cancel := context.WithTimeout(ctx, 2*c.config.Timeout)
	defer cancel()

	var resp batchClassifyResponse
	err := c.post(ctx, "/batch-classify", req, &resp)
	if err != nil || len(resp.Results) != len(batch) {
		if err != nil {
			c.logger.Warn("Batch classification failed, using fallback",
				"batch_size", len(batch),
				"error", err)
		} else {
			c.logger.Warn("Batch classification returned wrong result count, using fallback",
				"expected", len(batch),
				"got", len(resp.Results))
		}

		results := make([]Result, len(batch))
		for i, input := range batch {
			results[i] = c.fallback(input.Subject, input.Content)
		}
		return results
	}

	return resp.Results
}

// HealthCheck verifies the classifier service is reachable and ready
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier health check failed: %w", err)
	}
	defer resp.Body.Close()

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &status, nil
}

// post sends a JSON request and decodes the JSON response
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// setHeaders applies common request headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}
}

// fallback produces a rule-based result, or a low-confidence review
// marker when the fallback is disabled
func (c *Client) fallback(subject, content string) Result {
	if c.config.FallbackEnabled {
		return RuleBasedClassify(subject, content)
	}

	return Result{
		Label:      LabelReview,
		Confidence: 0.5,
		Reasoning:  "Classification service unavailable",
		Fallback:   true,
	}
}
