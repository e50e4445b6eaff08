package direct

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/watchengine/internal/providers"
)

func TestAdapter_Resolve(t *testing.T) {
	adapter := New("https://player.example.net/embed/")

	tests := []struct {
		name     string
		req      providers.ResolveRequest
		expected string
	}{
		{
			name:     "sub without resume",
			req:      providers.ResolveRequest{Episode: providers.EpisodeRef{EpisodeID: "4521", Number: 1}, Language: providers.LanguageSub},
			expected: "https://player.example.net/embed/4521/sub",
		},
		{
			name:     "dub with resume position",
			req:      providers.ResolveRequest{Episode: providers.EpisodeRef{EpisodeID: "4521"}, Language: providers.LanguageDub, ResumeAt: 312.8},
			expected: "https://player.example.net/embed/4521/dub?t=312",
		},
		{
			name:     "language falls back to the episode ref",
			req:      providers.ResolveRequest{Episode: providers.EpisodeRef{EpisodeID: " 77 ", Language: providers.LanguageDub}},
			expected: "https://player.example.net/embed/77/dub",
		},
		{
			name:     "sub-second resume is ignored",
			req:      providers.ResolveRequest{Episode: providers.EpisodeRef{EpisodeID: "77"}, ResumeAt: 0.4},
			expected: "https://player.example.net/embed/77/sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := adapter.Resolve(context.Background(), tt.req)
			require.NoError(t, err)

			require.Len(t, desc.Sources, 1)
			assert.Equal(t, tt.expected, desc.Sources[0].URL)
			assert.True(t, desc.Sources[0].IsEmbeddedPlayer)
			assert.False(t, desc.Sources[0].IsAdaptiveManifest)
			assert.Empty(t, desc.Subtitles)
			assert.True(t, desc.Download.IsZero())
			assert.Equal(t, providers.KindDirectManifest, desc.Provider)
		})
	}
}

func TestAdapter_ResolveMissingIdentifier(t *testing.T) {
	adapter := New("https://player.example.net/embed")

	for _, id := range []string{"", "naruto-12", "-3"} {
		_, err := adapter.Resolve(context.Background(), providers.ResolveRequest{
			Episode: providers.EpisodeRef{EpisodeID: id},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, providers.ErrMissingIdentifier), "id %q", id)

		var resErr *providers.ResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.Equal(t, providers.KindDirectManifest, resErr.Provider)
	}
}
