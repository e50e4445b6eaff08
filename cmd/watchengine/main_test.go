package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/justchokingaround/watchengine/internal/database"
	"github.com/justchokingaround/watchengine/internal/playback"
	"github.com/justchokingaround/watchengine/internal/providers"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchRouter(t *testing.T) {
	router := newWatchRouter(discardLogger())

	_, ok := router.take()
	assert.False(t, ok)

	resume := 0.0
	first := playback.WatchParams{
		Episode:  providers.EpisodeRef{EpisodeID: "ep-2", SeriesID: "frieren", Number: 2, Language: providers.LanguageSub},
		Provider: providers.KindSecondaryCatalog,
		Mode:     playback.ModeInline,
		Resume:   &resume,
	}
	second := first
	second.Episode = providers.EpisodeRef{EpisodeID: "ep-3", SeriesID: "frieren", Number: 3, Language: providers.LanguageSub}
	second.Automatic = true

	router.NavigateTo("settings", first.Encode())
	_, ok = router.take()
	assert.False(t, ok, "unknown routes are ignored")

	router.NavigateTo(playback.RouteWatch, map[string]string{})
	_, ok = router.take()
	assert.False(t, ok, "invalid params are ignored")

	router.NavigateTo(playback.RouteWatch, first.Encode())
	router.NavigateTo(playback.RouteWatch, second.Encode())

	got, ok := router.take()
	require.True(t, ok)
	assert.Equal(t, second.Episode, got.Episode)
	assert.True(t, got.Automatic)
	require.NotNil(t, got.Resume)
	assert.Zero(t, *got.Resume)

	_, ok = router.take()
	assert.False(t, ok, "only the latest destination is kept")
}

func TestLanguagePreferences(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{Path: database.MemoryPath})
	require.NoError(t, err)

	prefs := &languagePreferences{
		store:    database.NewSettingsStore(db),
		fallback: providers.LanguageDub,
	}
	ctx := context.Background()

	value, ok, err := prefs.Get(ctx, playback.LanguagePreferenceKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dub", value, "configured default applies until a choice is remembered")

	require.NoError(t, prefs.Set(ctx, playback.LanguagePreferenceKey, "sub"))
	value, ok, err = prefs.Get(ctx, playback.LanguagePreferenceKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sub", value)

	_, ok, err = prefs.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProviderKind(t *testing.T) {
	e := &engine{cfg: &config.Config{Providers: config.ProvidersConfig{Default: "catalog"}}}

	kind, err := e.providerKind("")
	require.NoError(t, err)
	assert.Equal(t, providers.KindSecondaryCatalog, kind)

	kind, err = e.providerKind("embed")
	require.NoError(t, err)
	assert.Equal(t, providers.KindThirdPartyEmbed, kind)

	_, err = e.providerKind("nope")
	assert.Error(t, err)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0:00", formatSeconds(-1))
	assert.Equal(t, "24:00", formatSeconds(1440))
	assert.Equal(t, "1:01:01", formatSeconds(3661))
}
