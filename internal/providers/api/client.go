package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/justchokingaround/watchengine/internal/cache"
	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/justchokingaround/watchengine/internal/providers"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
)

// Client handles communication with the series catalog API.
// It implements providers.SeriesLookup.
type Client struct {
	baseURL    string
	httpClient *providerhttp.Client
	cache      *cache.Cache[string, *providers.SeriesDetails]
	debug      bool
	logger     *slog.Logger
}

var _ providers.SeriesLookup = (*Client)(nil)

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = &config.Config{
			API: config.APIConfig{
				BaseURL:    "http://localhost:8080/api",
				Timeout:    30 * time.Second,
				Retries:    3,
				RetryDelay: time.Second,
			},
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	// the episode-data fetch is the only call retried, with a fixed delay
	httpClient := providerhttp.NewClient(providerhttp.ClientConfig{
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.Retries,
		RetryWait:  cfg.API.RetryDelay,
		UserAgent:  "watchengine/1.0",
		Debug:      cfg.Advanced.Debug,
		Logger:     logger,
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: httpClient,
		cache:      cache.New[string, *providers.SeriesDetails](cfg.Cache.MaxEntries),
		debug:      cfg.Advanced.Debug,
		logger:     logger,
	}
}

// GetSeriesDetails retrieves a series with its episode list and cross-reference ids
func (c *Client) GetSeriesDetails(ctx context.Context, seriesID string) (*providers.SeriesDetails, error) {
	if seriesID == "" {
		return nil, fmt.Errorf("series id is required")
	}

	if cached, ok := c.cache.Get(seriesID); ok {
		return cached, nil
	}

	// the id is a path segment, escape it so slashes in ids survive
	endpoint := "/series/" + url.PathEscape(seriesID)

	var response SeriesResponse
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("get series details failed: %w", err)
	}

	details := ToSeriesDetails(response)
	if details.ID == "" {
		details.ID = seriesID
	}

	if c.debug {
		c.logger.Debug("series details",
			"series", seriesID,
			"episodes", len(details.Episodes),
			"anilist", details.CrossReference.AniListID,
			"mal", details.CrossReference.MALID)
	}

	c.cache.Set(seriesID, details)
	return details, nil
}

// HealthCheck checks if the API is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	var response map[string]interface{}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}

	if healthy, ok := response["healthy"].(bool); ok && healthy {
		return nil
	}

	if msg, ok := response["message"].(string); ok && msg != "" {
		return fmt.Errorf("api is not healthy: %s", msg)
	}

	return fmt.Errorf("api is not healthy")
}

// get performs a GET request to the API
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	fullURL := c.baseURL + endpoint

	resp, err := c.httpClient.Get(ctx, fullURL, params, nil)
	if err != nil {
		var statusErr *providerhttp.StatusError
		if errors.As(err, &statusErr) {
			var errorResp ErrorResponse
			if resp != nil {
				if jsonErr := json.Unmarshal(resp.Body(), &errorResp); jsonErr == nil && errorResp.Error != "" {
					return fmt.Errorf("API error (%d): %s", statusErr.StatusCode, errorResp.Error)
				}
			}
			return fmt.Errorf("API error: HTTP %d", statusErr.StatusCode)
		}
		return fmt.Errorf("HTTP request failed (is API server running at %s?): %w", c.baseURL, err)
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
