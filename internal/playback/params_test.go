package playback

import (
	"testing"

	"github.com/justchokingaround/watchengine/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchParams(t *testing.T) {
	t.Run("encode", func(t *testing.T) {
		zero := 0.0
		params := WatchParams{
			Episode:   providers.EpisodeRef{EpisodeID: "ep-3", SeriesID: "frieren", Number: 3, Language: providers.LanguageDub},
			Provider:  providers.KindSecondaryCatalog,
			Mode:      ModeInline,
			Resume:    &zero,
			Automatic: true,
		}.Encode()

		assert.Equal(t, map[string]string{
			ParamSeriesID:  "frieren",
			ParamEpisodeID: "ep-3",
			ParamEpisode:   "3",
			ParamLanguage:  "dub",
			ParamProvider:  "catalog",
			ParamMode:      "inline",
			ParamResume:    "0",
			ParamAutomatic: "true",
		}, params)

		parsed, err := ParseWatchParams(params)
		require.NoError(t, err)
		assert.Equal(t, "ep-3", parsed.Episode.EpisodeID)
		assert.Equal(t, providers.LanguageDub, parsed.Episode.Language)
		require.NotNil(t, parsed.Resume)
		assert.Equal(t, 0.0, *parsed.Resume)
		assert.True(t, parsed.Automatic)
	})

	t.Run("resume omitted", func(t *testing.T) {
		parsed, err := ParseWatchParams(map[string]string{ParamEpisodeID: "ep-1"})
		require.NoError(t, err)
		assert.Nil(t, parsed.Resume)
		assert.False(t, parsed.Automatic)
		assert.Empty(t, parsed.Provider)
	})

	t.Run("invalid", func(t *testing.T) {
		cases := map[string]map[string]string{
			"missing episode id": {ParamEpisode: "1"},
			"bad number":         {ParamEpisodeID: "ep-1", ParamEpisode: "one"},
			"bad language":       {ParamEpisodeID: "ep-1", ParamLanguage: "raw"},
			"bad provider":       {ParamEpisodeID: "ep-1", ParamProvider: "torrent"},
			"bad mode":           {ParamEpisodeID: "ep-1", ParamMode: "pip"},
			"bad resume":         {ParamEpisodeID: "ep-1", ParamResume: "soon"},
			"bad automatic":      {ParamEpisodeID: "ep-1", ParamAutomatic: "maybe"},
		}
		for name, params := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParseWatchParams(params)
				assert.Error(t, err)
			})
		}
	})
}
