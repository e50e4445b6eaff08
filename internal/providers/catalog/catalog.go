// Package catalog resolves episodes through a secondary catalog keyed by
// AniList or MyAnimeList ids.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/justchokingaround/watchengine/internal/providers"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
)

// dubHints mark a source as dubbed when found in its quality label
var dubHints = []string{"dub", "english", "eng"}

// Adapter is the secondary-catalog provider
type Adapter struct {
	BaseURL string
	client  *providerhttp.Client
	lookup  providers.SeriesLookup
	logger  *slog.Logger
}

var _ providers.Adapter = (*Adapter)(nil)

// New creates a catalog adapter. lookup is used when the request carries no
// cross-reference id; it may be nil.
func New(baseURL string, client *providerhttp.Client, lookup providers.SeriesLookup, logger *slog.Logger) *Adapter {
	if client == nil {
		client = providerhttp.NewClient(providerhttp.DefaultClientConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		lookup:  lookup,
		logger:  logger,
	}
}

func (a *Adapter) Kind() providers.Kind {
	return providers.KindSecondaryCatalog
}

func (a *Adapter) Name() string {
	return "Catalog"
}

// Resolve maps the episode to a catalog-local id and fetches its sources
func (a *Adapter) Resolve(ctx context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error) {
	ids, err := a.crossReference(ctx, req)
	if err != nil {
		return nil, err
	}

	query := map[string]string{}
	if ids.AniListID != 0 {
		query["anilist"] = strconv.Itoa(ids.AniListID)
	} else {
		query["mal"] = strconv.Itoa(ids.MALID)
	}

	var episodes EpisodesResponse
	if err := a.client.GetJSON(ctx, a.BaseURL+"/episodes", query, nil, &episodes); err != nil {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonTransport, fmt.Errorf("fetch episodes: %w", err))
	}

	episode, ok := MatchEpisode(episodes.Episodes, req.Episode.Number)
	if !ok {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonNoEpisodeMatch,
			fmt.Errorf("episode %d not in %d catalog entries", req.Episode.Number, len(episodes.Episodes)))
	}

	var sources SourcesResponse
	if err := a.client.GetJSON(ctx, a.BaseURL+"/sources", map[string]string{"id": episode.ID}, nil, &sources); err != nil {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonTransport, fmt.Errorf("fetch sources: %w", err))
	}

	lang := req.EffectiveLanguage()
	filtered := FilterSources(sources.Sources, lang)
	if len(filtered) == 0 {
		return nil, providers.NewResolutionError(a.Kind(), providers.ReasonNoSources,
			fmt.Errorf("no %s sources among %d", lang, len(sources.Sources)))
	}

	a.logger.Debug("catalog resolved",
		"episode", req.Episode.Number,
		"catalog_episode", episode.ID,
		"language", lang,
		"sources", len(filtered))

	return a.toDescriptor(sources, filtered), nil
}

// crossReference returns the request's ids, looking the series up when none are set
func (a *Adapter) crossReference(ctx context.Context, req providers.ResolveRequest) (providers.CrossReferenceIDs, error) {
	ids := req.CrossReference
	if !ids.IsZero() {
		return ids, nil
	}

	if a.lookup != nil && req.Episode.SeriesID != "" {
		details, err := a.lookup.GetSeriesDetails(ctx, req.Episode.SeriesID)
		if err != nil {
			return ids, providers.NewResolutionError(a.Kind(), providers.ReasonTransport, fmt.Errorf("series lookup: %w", err))
		}
		ids = details.CrossReference
	}

	if ids.IsZero() {
		return ids, providers.NewResolutionError(a.Kind(), providers.ReasonNoCrossReference, nil)
	}
	return ids, nil
}

// MatchEpisode finds the requested absolute episode number, falling back to
// the 1-based position within the list sorted by number. Catalogs that number
// continuously across seasons (13..24 for season two) match this way.
func MatchEpisode(episodes []Episode, number int) (Episode, bool) {
	for _, ep := range episodes {
		if ep.Number == number {
			return ep, true
		}
	}

	if number < 1 || number > len(episodes) {
		return Episode{}, false
	}

	sorted := append([]Episode(nil), episodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Number < sorted[j].Number
	})
	return sorted[number-1], true
}

// IsDub reports whether a source is dubbed: flagged as dub, or its label
// contains a dub hint. Either signal alone is enough.
func IsDub(src Source) bool {
	if src.IsDub {
		return true
	}
	label := strings.ToLower(src.Quality)
	for _, hint := range dubHints {
		if strings.Contains(label, hint) {
			return true
		}
	}
	return false
}

// FilterSources keeps dubbed sources in dub mode and the rest in sub mode
func FilterSources(sources []Source, lang providers.LanguageMode) []Source {
	wantDub := lang == providers.LanguageDub
	var filtered []Source
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if IsDub(src) == wantDub {
			filtered = append(filtered, src)
		}
	}
	return filtered
}

func (a *Adapter) toDescriptor(resp SourcesResponse, sources []Source) *providers.StreamDescriptor {
	desc := &providers.StreamDescriptor{
		Provider: a.Kind(),
		Headers:  make(map[string]string),
	}

	for k, v := range resp.Headers {
		desc.Headers[k] = v
	}

	for _, src := range sources {
		if src.Referer != "" && desc.Headers["Referer"] == "" {
			desc.Headers["Referer"] = src.Referer
		}
		desc.Sources = append(desc.Sources, providers.VariantSource{
			URL:                src.URL,
			IsAdaptiveManifest: src.IsM3U8 || isManifestURL(src.URL),
			Label:              src.Quality,
		})
	}

	for _, sub := range resp.Subtitles {
		if sub.URL == "" {
			continue
		}
		desc.Subtitles = append(desc.Subtitles, providers.Subtitle{
			Language: sub.Lang,
			URL:      sub.URL,
			Format:   subtitleFormat(sub.URL),
		})
	}

	if resp.Intro != nil && resp.Intro.End > resp.Intro.Start {
		desc.Intro = &providers.TimeRange{Start: resp.Intro.Start, End: resp.Intro.End}
	}
	if resp.Outro != nil && resp.Outro.End > resp.Outro.Start {
		desc.Outro = &providers.TimeRange{Start: resp.Outro.Start, End: resp.Outro.End}
	}

	switch {
	case len(resp.Download) > 0:
		for _, link := range resp.Download {
			desc.Download.Links = append(desc.Download.Links, providers.DownloadLink{URL: link.URL, Label: link.Quality})
		}
	case resp.DownloadURL != "":
		desc.Download.URL = resp.DownloadURL
	}

	if len(desc.Headers) == 0 {
		desc.Headers = nil
	}
	return desc
}

func isManifestURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".m3u8")
}

func subtitleFormat(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}
