// Package skip looks up opening and ending skip ranges for an episode.
package skip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/justchokingaround/watchengine/internal/providers"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
)

// DefaultBaseURL is the public AniSkip endpoint
const DefaultBaseURL = "https://api.aniskip.com/v1/skip-times"

// Times holds the ranges found for an episode; either may be nil
type Times struct {
	Intro *providers.TimeRange
	Outro *providers.TimeRange
}

// apiResponse is the AniSkip response body
type apiResponse struct {
	Found   bool `json:"found"`
	Results []struct {
		Interval struct {
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
		} `json:"interval"`
		SkipType string `json:"skip_type"`
	} `json:"results"`
}

// Client fetches skip times by MyAnimeList id and episode number
type Client struct {
	baseURL string
	client  *providerhttp.Client
	logger  *slog.Logger
}

// NewClient creates a skip-times client
func NewClient(baseURL string, client *providerhttp.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = providerhttp.NewClient(providerhttp.DefaultClientConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// GetSkipTimes returns the op/ed ranges of an episode.
// Returns nil (not an error) when the service has none or is unreachable.
func (c *Client) GetSkipTimes(ctx context.Context, malID, episode int) (*Times, error) {
	if malID <= 0 || episode <= 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s/%d/%d?types=op&types=ed", c.baseURL, malID, episode)

	var data apiResponse
	if err := c.client.GetJSON(ctx, url, nil, nil, &data); err != nil {
		var statusErr *providerhttp.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		c.logger.Warn("skip times lookup failed", "mal", malID, "episode", episode, "error", err)
		return nil, nil
	}

	if !data.Found || len(data.Results) == 0 {
		return nil, nil
	}

	times := &Times{}
	for _, result := range data.Results {
		if result.Interval.EndTime <= result.Interval.StartTime {
			continue
		}
		r := &providers.TimeRange{Start: result.Interval.StartTime, End: result.Interval.EndTime}
		switch result.SkipType {
		case "op":
			times.Intro = r
		case "ed":
			times.Outro = r
		}
	}

	if times.Intro == nil && times.Outro == nil {
		return nil, nil
	}
	return times, nil
}
