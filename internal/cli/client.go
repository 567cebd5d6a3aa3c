package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"automail/internal/classify"
	"automail/internal/server"
	"automail/internal/workers"
)

// Client represents an HTTP client for the automail control API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

// NewClientWithTimeout creates a new API client with a custom timeout
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError represents an error from the API
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// doRequest performs an HTTP request and handles errors
func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()

		apiErr := APIError{Code: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return nil, &apiErr
	}

	return resp, nil
}

// decodeResponse decodes a JSON response body and closes it
func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HealthCheck fetches service and classifier health
func (c *Client) HealthCheck() (*server.HealthResponse, error) {
	resp, err := c.doRequest("GET", "/api/health", nil)
	if err != nil {
		return nil, err
	}

	var health server.HealthResponse
	if err := decodeResponse(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetStatus fetches the current scheduler status
func (c *Client) GetStatus() (*workers.Status, error) {
	resp, err := c.doRequest("GET", "/api/status", nil)
	if err != nil {
		return nil, err
	}

	var status workers.Status
	if err := decodeResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMessages fetches recently processed messages
func (c *Client) GetMessages(limit int) (*server.MessagesResponse, error) {
	path := "/api/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var messages server.MessagesResponse
	if err := decodeResponse(resp, &messages); err != nil {
		return nil, err
	}
	return &messages, nil
}

// StartProcessing asks the service to begin processing
func (c *Client) StartProcessing(force bool) error {
	path := "/api/processing/start"
	if force {
		path += "?force=true"
	}

	resp, err := c.doRequest("POST", path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// StopProcessing asks the service to stop processing
func (c *Client) StopProcessing() error {
	resp, err := c.doRequest("POST", "/api/processing/stop", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Classify classifies ad-hoc content through the running service
func (c *Client) Classify(subject, content string) (*classify.Result, error) {
	resp, err := c.doRequest("POST", "/api/classify", server.ClassifyRequest{
		Subject: subject,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	var result classify.Result
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
