package mpv

import (
	"context"
	"testing"
	"time"

	"github.com/justchokingaround/watchengine/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(opts Options) *Player {
	p := newPlayer(PlatformLinux, opts)
	p.ipcConfig = &IPCConfig{Type: IPCUnixSocket, Address: "/tmp/test.sock", IsSocket: true}
	return p
}

func TestBuildMPVArgs(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		options  player.PlayOptions
		expected []string
		absent   []string
	}{
		{
			name:     "defaults",
			expected: []string{"--idle=yes", "--no-ytdl", "--no-config", "--msg-level=all=warn", "--user-agent=" + defaultUserAgent},
			absent:   []string{"--fullscreen"},
		},
		{
			name:     "user config and debug output",
			opts:     Options{LoadUserConfig: true, Debug: true},
			absent:   []string{"--no-config", "--msg-level=all=warn"},
			expected: []string{"--idle=yes"},
		},
		{
			name:     "fullscreen",
			options:  player.PlayOptions{Fullscreen: true},
			expected: []string{"--fullscreen"},
		},
		{
			name:     "subtitles",
			options:  player.PlayOptions{SubtitleURL: "https://cdn.test/en.vtt", SubtitleLang: "English"},
			expected: []string{"--sub-file=https://cdn.test/en.vtt", "--slang=English"},
		},
		{
			name: "headers",
			options: player.PlayOptions{
				Referer:   "https://catalog.test/",
				UserAgent: "watchengine-test",
				Headers: map[string]string{
					"Referer":    "https://catalog.test/",
					"User-Agent": "watchengine-test",
					"Origin":     "https://catalog.test",
				},
			},
			expected: []string{"--referrer=https://catalog.test/", "--user-agent=watchengine-test", "--http-header-fields=Origin: https://catalog.test"},
			absent:   []string{"--user-agent=" + defaultUserAgent},
		},
		{
			name:     "title and extra args",
			options:  player.PlayOptions{Title: "Frieren - Episode 2", MPVArgs: []string{"--hwdec=auto"}},
			expected: []string{"--force-media-title=Frieren - Episode 2", "--hwdec=auto"},
		},
	}

	url := "https://cdn.test/ep-2/master.m3u8"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := testPlayer(tt.opts).buildMPVArgs(url, tt.options)

			assert.Equal(t, "--input-ipc-server=/tmp/test.sock", args[0])
			assert.Equal(t, url, args[len(args)-1], "url must be last")
			for _, want := range tt.expected {
				assert.Contains(t, args, want)
			}
			for _, unwanted := range tt.absent {
				assert.NotContains(t, args, unwanted)
			}
		})
	}
}

func TestLoadTracker(t *testing.T) {
	var tracker loadTracker

	assert.False(t, tracker.observe(0), "unknown duration is not loaded")
	assert.True(t, tracker.observe(24*time.Minute))
	assert.False(t, tracker.observe(24*time.Minute), "fires once")
}

func TestDispatch(t *testing.T) {
	p := testPlayer(Options{})

	var (
		loaded   []time.Duration
		progress []player.PlaybackProgress
		ended    int
	)
	p.OnFileLoaded(func(d time.Duration) { loaded = append(loaded, d) })
	p.OnProgressUpdate(func(pp player.PlaybackProgress) { progress = append(progress, pp) })
	p.OnPlaybackEnd(func() { ended++ })

	ctx := context.Background()
	tracker := &loadTracker{}

	assert.True(t, p.dispatch(ctx, tracker, *newProgress(0, 0, false, false)))
	assert.Empty(t, loaded)

	assert.True(t, p.dispatch(ctx, tracker, *newProgress(1, 1440, true, false)))
	assert.Equal(t, []time.Duration{1440 * time.Second}, loaded)
	assert.True(t, p.IsPaused())

	assert.True(t, p.dispatch(ctx, tracker, *newProgress(2, 1440, false, false)))
	assert.True(t, p.IsPlaying())
	assert.Len(t, loaded, 1)

	assert.False(t, p.dispatch(ctx, tracker, *newProgress(1440, 1440, false, true)))
	assert.Equal(t, 1, ended)
	require.Len(t, progress, 4)
	assert.InDelta(t, 100.0, progress[3].Percentage, 0.001)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, p.dispatch(cancelled, tracker, *newProgress(3, 1440, false, false)))
	assert.Len(t, progress, 4, "nothing is delivered after stop")
}

func TestStopWhenAlreadyStopped(t *testing.T) {
	p := testPlayer(Options{})

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.IsPlaying())
	assert.False(t, p.IsPaused())
}

func TestOperationsBeforePlay(t *testing.T) {
	p := testPlayer(Options{})

	_, err := p.GetProgress(context.Background())
	assert.Error(t, err)
	assert.Error(t, p.Seek(context.Background(), time.Second))
}
