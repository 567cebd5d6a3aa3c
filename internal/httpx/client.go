package httpx

import (
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an error response body is kept for reporting
const maxErrorBody = 4096

// Client wraps http.Client with the retrying transport and converts any
// response that is still non-2xx after retries into an *UpstreamError.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client using the given retry transport.
func NewClient(transport *Transport, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Do executes the request. A returned response always has a 2xx status;
// everything else surfaces as an error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
}
