package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/watchengine/internal/providers"
)

type mockLookup struct {
	details *providers.SeriesDetails
}

func (m *mockLookup) GetSeriesDetails(ctx context.Context, seriesID string) (*providers.SeriesDetails, error) {
	return m.details, nil
}

func newEpisodeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ajax/episode" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "52991", r.URL.Query().Get("mal"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		PlayerURL:   "https://embed.example/player/",
		DownloadURL: "https://embed.example/download",
	}
}

const episodeHTML = `{"status": true, "html": "<ul><li class=\"episode-item\" data-number=\"1\" data-id=\"aa11\">1</li><li class=\"episode-item\" data-number=\"2\" data-id=\"bb22\">2</li></ul>"}`

func TestAdapter_Resolve(t *testing.T) {
	t.Run("builds player and download urls", func(t *testing.T) {
		server := newEpisodeServer(t, episodeHTML)
		adapter := New(testConfig(server.URL), nil, nil, nil)

		desc, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 2},
			Language:       providers.LanguageDub,
			ResumeAt:       61.9,
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		require.NoError(t, err)

		require.Len(t, desc.Sources, 1)
		assert.Equal(t, "https://embed.example/player/bb22?lang=dub&t=61", desc.Sources[0].URL)
		assert.True(t, desc.Sources[0].IsEmbeddedPlayer)
		assert.Equal(t, "https://embed.example/download/bb22", desc.Download.URL)
		assert.Equal(t, providers.KindThirdPartyEmbed, desc.Provider)
	})

	t.Run("falls back to the first item and zero resume", func(t *testing.T) {
		server := newEpisodeServer(t, `{"status": true, "html": "<div class=\"episode-item\" data-id=\"only\"></div>"}`)
		adapter := New(testConfig(server.URL), nil, nil, nil)

		desc, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 5},
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://embed.example/player/only?lang=sub&t=0", desc.Sources[0].URL)
	})

	t.Run("numbered items without a match", func(t *testing.T) {
		server := newEpisodeServer(t, episodeHTML)
		adapter := New(testConfig(server.URL), nil, nil, nil)

		_, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 7},
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		assert.True(t, errors.Is(err, providers.ErrNoEpisodeMatch))

		var resErr *providers.ResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.Equal(t, providers.KindThirdPartyEmbed, resErr.Provider)
	})

	t.Run("uses the series lookup for the MAL id", func(t *testing.T) {
		server := newEpisodeServer(t, episodeHTML)
		lookup := &mockLookup{details: &providers.SeriesDetails{CrossReference: providers.CrossReferenceIDs{MALID: 52991}}}
		adapter := New(testConfig(server.URL), nil, lookup, nil)

		desc, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{SeriesID: "frieren", Number: 1},
			CrossReference: providers.CrossReferenceIDs{AniListID: 154587},
		})
		require.NoError(t, err)
		assert.Contains(t, desc.Sources[0].URL, "/aa11?")
	})

	t.Run("missing MAL id", func(t *testing.T) {
		adapter := New(testConfig("http://127.0.0.1:1"), nil, &mockLookup{details: &providers.SeriesDetails{}}, nil)

		_, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode: providers.EpisodeRef{SeriesID: "frieren", Number: 1},
		})
		assert.True(t, errors.Is(err, providers.ErrMissingIdentifier))
	})

	t.Run("no access id", func(t *testing.T) {
		server := newEpisodeServer(t, `{"status": true, "html": "<ul><li class=\"episode-item\">1</li></ul>"}`)
		adapter := New(testConfig(server.URL), nil, nil, nil)

		_, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 1},
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		assert.True(t, errors.Is(err, providers.ErrNoSources))
	})

	t.Run("status false", func(t *testing.T) {
		server := newEpisodeServer(t, `{"status": false, "html": ""}`)
		adapter := New(testConfig(server.URL), nil, nil, nil)

		_, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 1},
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		assert.True(t, errors.Is(err, providers.ErrNoSources))
	})

	t.Run("download disabled without url", func(t *testing.T) {
		server := newEpisodeServer(t, episodeHTML)
		cfg := testConfig(server.URL)
		cfg.DownloadURL = ""
		adapter := New(cfg, nil, nil, nil)

		desc, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode:        providers.EpisodeRef{Number: 1},
			CrossReference: providers.CrossReferenceIDs{MALID: 52991},
		})
		require.NoError(t, err)
		assert.True(t, desc.Download.IsZero())
	})
}
