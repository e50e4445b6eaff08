// Package player defines the playback backend driven by a watch session.
//
// A backend plays one stream at a time. It reports the stream duration once
// it is known, periodic progress while playing, and the natural end of the
// stream. Callbacks run on the backend's goroutines; receivers must not block.
package player

import (
	"context"
	"time"
)

// Player is a video player backend
type Player interface {
	// Play replaces whatever is playing with url
	Play(ctx context.Context, url string, options PlayOptions) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	GetProgress(ctx context.Context) (*PlaybackProgress, error)

	OnProgressUpdate(callback func(progress PlaybackProgress))
	// OnFileLoaded fires once per Play, when the stream duration is first known
	OnFileLoaded(callback func(duration time.Duration))
	// OnPlaybackEnd fires when the stream reaches its natural end
	OnPlaybackEnd(callback func())
	// OnExit fires when the player goes away without Stop being called
	OnExit(callback func())
	OnError(callback func(err error))

	IsPlaying() bool
	IsPaused() bool
}

// PlayOptions describes how a resolved stream is opened
type PlayOptions struct {
	Fullscreen bool

	SubtitleURL  string
	SubtitleLang string

	// Headers are sent with every stream request. Referer and UserAgent
	// get dedicated player flags.
	Headers   map[string]string
	Referer   string
	UserAgent string

	// Title is shown by the player instead of the URL
	Title string
	// MPVArgs are appended verbatim before the URL
	MPVArgs []string
}

// PlaybackProgress is one position sample
type PlaybackProgress struct {
	CurrentTime time.Duration
	// Duration is zero while unknown
	Duration   time.Duration
	Percentage float64
	Paused     bool
	EOF        bool
}

// State is the backend lifecycle
type State int

const (
	StateStopped State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateError
)
