package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/justchokingaround/watchengine/internal/database"
	"github.com/justchokingaround/watchengine/internal/history"
	"github.com/justchokingaround/watchengine/internal/manifest"
	"github.com/justchokingaround/watchengine/internal/playback"
	"github.com/justchokingaround/watchengine/internal/providers"
	"github.com/justchokingaround/watchengine/internal/providers/api"
	"github.com/justchokingaround/watchengine/internal/providers/catalog"
	"github.com/justchokingaround/watchengine/internal/providers/direct"
	"github.com/justchokingaround/watchengine/internal/providers/embed"
	providerhttp "github.com/justchokingaround/watchengine/internal/providers/http"
	"github.com/justchokingaround/watchengine/internal/skip"
)

// engine is everything built from one configuration
type engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	lookup   *api.Client
	registry *providers.Registry
	parser   *manifest.Parser
	skips    playback.SkipLookup
	history  *history.Service
	prefs    *languagePreferences
}

// engineHolder swaps engines on config reload
type engineHolder struct {
	p atomic.Pointer[engine]
}

func (h *engineHolder) Store(e *engine) { h.p.Store(e) }
func (h *engineHolder) Load() *engine   { return h.p.Load() }

func newEngine(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *engine {
	providerClient := providerhttp.NewClient(providerhttp.ClientConfig{
		Timeout: cfg.Providers.Timeout,
		Debug:   cfg.Advanced.Debug,
		Logger:  logger,
	})
	lookup := api.NewClient(cfg, logger)

	e := &engine{
		cfg:      cfg,
		logger:   logger,
		lookup:   lookup,
		registry: buildRegistry(cfg, providerClient, lookup, logger),
		parser:   manifest.NewParser(providerClient, cfg.Cache.MaxEntries, logger),
		history:  history.NewService(db),
		prefs: &languagePreferences{
			store:    database.NewSettingsStore(db),
			fallback: providers.LanguageMode(cfg.Playback.DefaultLanguage),
		},
	}
	if cfg.Skip.Enabled {
		e.skips = skip.NewClient(cfg.Skip.BaseURL, providerClient, logger)
	}
	return e
}

func buildRegistry(cfg *config.Config, client *providerhttp.Client, lookup providers.SeriesLookup, logger *slog.Logger) *providers.Registry {
	reg := providers.NewRegistry()

	var adapters []providers.Adapter
	if cfg.Providers.Direct.Enabled {
		adapters = append(adapters, direct.New(cfg.Providers.Direct.PlayerURL))
	}
	if cfg.Providers.Catalog.Enabled {
		adapters = append(adapters, catalog.New(cfg.Providers.Catalog.BaseURL, client, lookup, logger))
	}
	if cfg.Providers.Embed.Enabled {
		adapters = append(adapters, embed.New(embed.Config{
			BaseURL:     cfg.Providers.Embed.BaseURL,
			PlayerURL:   cfg.Providers.Embed.PlayerURL,
			DownloadURL: cfg.Providers.Embed.DownloadURL,
		}, client, lookup, logger))
	}

	for _, adapter := range adapters {
		if err := reg.Register(adapter); err != nil {
			logger.Warn("failed to register provider", "name", adapter.Name(), "error", err)
			continue
		}
		logger.Debug("registered provider", "kind", adapter.Kind())
	}
	return reg
}

func (e *engine) orchestrator() *playback.Orchestrator {
	return playback.NewOrchestrator(e.registry, e.parser, e.skips, e.logger)
}

// providerKind returns the --provider flag value or the configured default
func (e *engine) providerKind(flag string) (providers.Kind, error) {
	if flag == "" {
		flag = e.cfg.Providers.Default
	}
	return providers.ParseKind(flag)
}

// episode looks up the series and returns the ref of episode number.
// The language is left empty unless --dub or --sub was given.
func (e *engine) episode(ctx context.Context, seriesID string, number int) (providers.EpisodeRef, *providers.SeriesDetails, error) {
	series, err := e.lookup.GetSeriesDetails(ctx, seriesID)
	if err != nil {
		return providers.EpisodeRef{}, nil, fmt.Errorf("failed to load series %s: %w", seriesID, err)
	}

	index := series.FindEpisode("", number)
	if index < 0 {
		return providers.EpisodeRef{}, nil, fmt.Errorf("series %s has no episode %d", seriesID, number)
	}

	return providers.EpisodeRef{
		EpisodeID: series.Episodes[index].ID,
		SeriesID:  series.ID,
		Number:    series.Episodes[index].Number,
		Language:  flagLanguage(),
	}, series, nil
}

// flagLanguage returns the language forced by --dub/--sub, or ""
func flagLanguage() providers.LanguageMode {
	switch {
	case dubFlag:
		return providers.LanguageDub
	case subFlag:
		return providers.LanguageSub
	default:
		return ""
	}
}

// languagePreferences falls back to the configured default language when
// none has been remembered yet
type languagePreferences struct {
	store    *database.SettingsStore
	fallback providers.LanguageMode
}

var _ playback.PreferenceStore = (*languagePreferences)(nil)

func (p *languagePreferences) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := p.store.Get(ctx, key)
	if err != nil || ok || key != playback.LanguagePreferenceKey || p.fallback == "" {
		return value, ok, err
	}
	return string(p.fallback), true, nil
}

func (p *languagePreferences) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, key, value)
}
