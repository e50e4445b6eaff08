// Package embed resolves episodes through a third-party embed site that
// exposes an opaque access id per MyAnimeList episode.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/justchokingaround/watchengine/internal/providers"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
)

// Config holds the embed site endpoints
type Config struct {
	BaseURL     string // episode-data endpoint host
	PlayerURL   string // embedded player wrapper
	DownloadURL string // empty disables downloads
}

// Adapter is the third-party embed provider
type Adapter struct {
	cfg    Config
	client *providerhttp.Client
	lookup providers.SeriesLookup
	logger *slog.Logger
}

var _ providers.Adapter = (*Adapter)(nil)

// episodeResponse is the ajax episode-data payload
type episodeResponse struct {
	Status bool   `json:"status"`
	HTML   string `json:"html"`
}

// New creates an embed adapter. lookup may be nil.
func New(cfg Config, client *providerhttp.Client, lookup providers.SeriesLookup, logger *slog.Logger) *Adapter {
	if client == nil {
		client = providerhttp.NewClient(providerhttp.DefaultClientConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.PlayerURL = strings.TrimRight(cfg.PlayerURL, "/")
	cfg.DownloadURL = strings.TrimRight(cfg.DownloadURL, "/")
	return &Adapter{cfg: cfg, client: client, lookup: lookup, logger: logger}
}

func (a *Adapter) Kind() providers.Kind {
	return providers.KindThirdPartyEmbed
}

func (a *Adapter) Name() string {
	return "Embed"
}

// Resolve fetches the episode's access id and builds the player and download URLs
func (a *Adapter) Resolve(ctx context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error) {
	malID, err := a.malID(ctx, req)
	if err != nil {
		return nil, err
	}

	accessID, err := a.accessID(ctx, malID, req.Episode.Number)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("lang", string(req.EffectiveLanguage()))
	params.Set("t", strconv.Itoa(max(int(req.ResumeAt), 0)))

	desc := &providers.StreamDescriptor{
		Provider: a.Kind(),
		Sources: []providers.VariantSource{{
			URL:              fmt.Sprintf("%s/%s?%s", a.cfg.PlayerURL, url.PathEscape(accessID), params.Encode()),
			IsEmbeddedPlayer: true,
		}},
	}
	if a.cfg.DownloadURL != "" {
		desc.Download.URL = fmt.Sprintf("%s/%s", a.cfg.DownloadURL, url.PathEscape(accessID))
	}

	a.logger.Debug("embed resolved", "mal", malID, "episode", req.Episode.Number, "access_id", accessID)
	return desc, nil
}

func (a *Adapter) malID(ctx context.Context, req providers.ResolveRequest) (int, error) {
	if req.CrossReference.MALID != 0 {
		return req.CrossReference.MALID, nil
	}

	if a.lookup != nil && req.Episode.SeriesID != "" {
		details, err := a.lookup.GetSeriesDetails(ctx, req.Episode.SeriesID)
		if err != nil {
			return 0, providers.NewResolutionError(a.Kind(), providers.ReasonTransport, fmt.Errorf("series lookup: %w", err))
		}
		if details.CrossReference.MALID != 0 {
			return details.CrossReference.MALID, nil
		}
	}

	return 0, providers.NewResolutionError(a.Kind(), providers.ReasonMissingIdentifier, fmt.Errorf("no MyAnimeList id"))
}

// accessID queries the episode-data endpoint and extracts the data-id of the
// .episode-item whose data-number equals the episode. Markup without any
// data-number falls back to the first item.
func (a *Adapter) accessID(ctx context.Context, malID, number int) (string, error) {
	query := map[string]string{
		"mal": strconv.Itoa(malID),
		"ep":  strconv.Itoa(number),
	}

	var resp episodeResponse
	if err := a.client.GetJSON(ctx, a.cfg.BaseURL+"/ajax/episode", query, nil, &resp); err != nil {
		return "", providers.NewResolutionError(a.Kind(), providers.ReasonTransport, fmt.Errorf("fetch episode data: %w", err))
	}
	if !resp.Status || resp.HTML == "" {
		return "", providers.NewResolutionError(a.Kind(), providers.ReasonNoSources, fmt.Errorf("episode data unavailable"))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		return "", providers.NewResolutionError(a.Kind(), providers.ReasonNoSources, fmt.Errorf("failed to parse HTML: %w", err))
	}

	var first, matched string
	var numbered bool
	want := strconv.Itoa(number)
	doc.Find(".episode-item").EachWithBreak(func(i int, s *goquery.Selection) bool {
		id, ok := s.Attr("data-id")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return true
		}
		if first == "" {
			first = id
		}
		n, ok := s.Attr("data-number")
		if !ok {
			return true
		}
		numbered = true
		if strings.TrimSpace(n) == want {
			matched = id
			return false
		}
		return true
	})

	switch {
	case matched != "":
		return matched, nil
	case numbered:
		return "", providers.NewResolutionError(a.Kind(), providers.ReasonNoEpisodeMatch, fmt.Errorf("no episode item numbered %d", number))
	case first != "":
		return first, nil
	default:
		return "", providers.NewResolutionError(a.Kind(), providers.ReasonNoSources, fmt.Errorf("no access id in episode data"))
	}
}
