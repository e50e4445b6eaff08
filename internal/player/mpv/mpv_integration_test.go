//go:build integration

package mpv

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/justchokingaround/watchengine/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "av://lavfi:testsrc=duration=3:size=320x240:rate=30"

func requireMPV(t *testing.T) {
	if _, err := exec.LookPath("mpv"); err != nil {
		t.Skip("mpv not available, skipping integration tests")
	}
}

func TestPlayer_LoadSeekEnd(t *testing.T) {
	requireMPV(t)

	p, err := New(Options{})
	require.NoError(t, err)

	loaded := make(chan time.Duration, 1)
	ended := make(chan struct{}, 1)
	p.OnFileLoaded(func(d time.Duration) { loaded <- d })
	p.OnPlaybackEnd(func() { ended <- struct{}{} })

	ctx := context.Background()
	require.NoError(t, p.Play(ctx, testSource, player.PlayOptions{MPVArgs: []string{"--vo=null", "--ao=null"}}))
	defer func() { _ = p.Stop(ctx) }()

	select {
	case d := <-loaded:
		assert.InDelta(t, 3, d.Seconds(), 0.5)
	case <-time.After(10 * time.Second):
		t.Fatal("file never loaded")
	}

	require.NoError(t, p.Seek(ctx, 2*time.Second))

	select {
	case <-ended:
	case <-time.After(10 * time.Second):
		t.Fatal("playback never ended")
	}
}

func TestPlayer_StopDoesNotReportExit(t *testing.T) {
	requireMPV(t)

	p, err := New(Options{})
	require.NoError(t, err)

	exited := make(chan struct{}, 1)
	p.OnExit(func() { exited <- struct{}{} })

	ctx := context.Background()
	require.NoError(t, p.Play(ctx, testSource, player.PlayOptions{MPVArgs: []string{"--vo=null", "--ao=null"}}))
	time.Sleep(time.Second)
	require.NoError(t, p.Stop(ctx))

	select {
	case <-exited:
		t.Fatal("exit reported for a requested stop")
	case <-time.After(time.Second):
	}
	assert.False(t, p.IsPlaying())
}
