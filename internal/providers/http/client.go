package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent is sent when a request sets no User-Agent of its own
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client wraps resty.Client with timeout, optional fixed-delay retries and debug logging
type Client struct {
	resty      *resty.Client
	maxRetries int
	retryWait  time.Duration
	timeout    time.Duration
	debug      bool
	logger     *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int           // 0 disables retries
	RetryWait  time.Duration // fixed delay between attempts
	UserAgent  string
	Debug      bool
	Logger     *slog.Logger
}

// DefaultClientConfig returns the config used for provider calls, which are never retried
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   30 * time.Second,
		RetryWait: time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryWait == 0 {
		config.RetryWait = time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	// equal min and max wait gives a fixed delay between attempts
	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(config.RetryWait).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json, text/html, application/vnd.apple.mpegurl, */*").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	client := &Client{
		resty:      restyClient,
		maxRetries: config.MaxRetries,
		retryWait:  config.RetryWait,
		timeout:    config.Timeout,
		debug:      config.Debug,
		logger:     config.Logger,
	}

	if config.Debug {
		restyClient.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
			client.logRequest(r)
			return nil
		})
		restyClient.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
			client.logResponse(r)
			return nil
		})
	}

	return client
}

// Get performs a GET request with context support
func (c *Client) Get(ctx context.Context, url string, query, headers map[string]string) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	for key, value := range headers {
		req.SetHeader(key, value)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", url, err)
	}

	if resp.StatusCode() >= 400 {
		return resp, &StatusError{URL: url, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, url string, query, headers map[string]string, out interface{}) error {
	resp, err := c.Get(ctx, url, query, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// GetText performs a GET request and returns the body as a string
func (c *Client) GetText(ctx context.Context, url string, headers map[string]string) (string, error) {
	resp, err := c.Get(ctx, url, nil, headers)
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// GetTimeout returns the configured timeout
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}

// GetMaxRetries returns the configured max retries
func (c *Client) GetMaxRetries() int {
	return c.maxRetries
}

// GetRetryWait returns the fixed delay between retries
func (c *Client) GetRetryWait() time.Duration {
	return c.retryWait
}

func (c *Client) logRequest(r *resty.Request) {
	c.logger.Debug("HTTP Request",
		"method", r.Method,
		"url", r.URL,
		"query", r.QueryParam.Encode(),
	)
}

func (c *Client) logResponse(r *resty.Response) {
	c.logger.Debug("HTTP Response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"time", r.Time(),
		"body", truncate(r.String(), 1000),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
