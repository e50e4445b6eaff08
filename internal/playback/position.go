package playback

import (
	"math"
	"time"

	"github.com/justchokingaround/watchengine/internal/history"
	"github.com/justchokingaround/watchengine/internal/providers"
)

const (
	// resume positions this close to the end restart the episode
	resumeTailGuard = 10.0
	// automatic navigation ignores resume positions below this
	autoNavFloor = 10.0
	// minimum wall-clock gap between two history writes
	persistInterval = 2 * time.Second
	// a position jump larger than this is persisted immediately
	seekJumpThreshold = 5.0
)

// PlaybackPosition is the tracked playback offset
type PlaybackPosition struct {
	Seconds    float64
	CapturedAt time.Time
}

// AcceptResume reports whether a carried-over resume position is honored
// for a stream of the given duration. An unknown duration rejects it.
func AcceptResume(resume, duration float64, automatic bool) bool {
	switch {
	case resume <= 0 || duration <= 0:
		return false
	case resume > duration:
		return false
	case duration-resume < resumeTailGuard:
		return false
	case automatic && resume < autoNavFloor:
		return false
	}
	return true
}

// Synchronizer owns the playback position of a session and decides what
// to persist. It is not safe for concurrent use.
type Synchronizer struct {
	now func() time.Time

	episode     providers.EpisodeRef
	seriesTitle string
	provider    providers.Kind

	position PlaybackPosition
	duration float64
	ready    bool

	pendingResume float64
	automatic     bool

	switching bool
	snapshot  float64

	persisted     bool
	lastPersistAt time.Time
	// position of the last persisted record, untruncated
	lastPersisted float64
}

// NewSynchronizer creates a synchronizer; now defaults to time.Now
func NewSynchronizer(now func() time.Time) *Synchronizer {
	if now == nil {
		now = time.Now
	}
	return &Synchronizer{now: now}
}

// SetMetadata sets the fields copied into history records
func (s *Synchronizer) SetMetadata(seriesTitle string, provider providers.Kind) {
	s.seriesTitle = seriesTitle
	s.provider = provider
}

// BeginEpisode resets all state for a new episode. resume is the candidate
// position checked against AcceptResume once the duration is known.
func (s *Synchronizer) BeginEpisode(episode providers.EpisodeRef, resume float64, automatic bool) {
	s.episode = episode
	s.position = PlaybackPosition{CapturedAt: s.now()}
	s.duration = 0
	s.ready = false
	s.pendingResume = resume
	s.automatic = automatic
	s.switching = false
	s.snapshot = 0
	s.persisted = false
	s.lastPersistAt = time.Time{}
	s.lastPersisted = 0
}

// BeginSwitch snapshots the position before a provider or quality switch.
// Observations are ignored until SourceLoaded. A switch before the first
// load keeps the pending resume candidate instead.
func (s *Synchronizer) BeginSwitch() {
	if s.switching {
		return
	}
	if !s.ready {
		return
	}
	s.snapshot = s.position.Seconds
	s.switching = true
	s.ready = false
}

// SourceLoaded records the new source's duration and returns the position to
// start from: the switch snapshot, the accepted resume candidate, or 0.
func (s *Synchronizer) SourceLoaded(duration float64) float64 {
	if duration > 0 {
		s.duration = duration
	}

	var start float64
	if s.switching {
		start = s.snapshot
		if s.duration > 0 && start > s.duration {
			start = s.duration
		}
		s.switching = false
	} else if AcceptResume(s.pendingResume, s.duration, s.automatic) {
		start = s.pendingResume
	}

	s.pendingResume = 0
	s.ready = true
	s.position = PlaybackPosition{Seconds: math.Max(start, 0), CapturedAt: s.now()}
	return s.position.Seconds
}

// Observe tracks a position report and returns the record to persist, if the
// throttle allows one.
func (s *Synchronizer) Observe(position, duration float64) (history.Record, bool) {
	if s.switching || !s.ready {
		return history.Record{}, false
	}
	if duration > 0 {
		s.duration = duration
	}
	s.position = PlaybackPosition{Seconds: math.Max(position, 0), CapturedAt: s.now()}

	rec, ok := s.record(s.position.Seconds)
	if !ok {
		return history.Record{}, false
	}

	now := s.now()
	due := !s.persisted ||
		now.Sub(s.lastPersistAt) >= persistInterval ||
		math.Abs(s.position.Seconds-s.lastPersisted) > seekJumpThreshold
	if !due {
		return history.Record{}, false
	}

	s.persisted = true
	s.lastPersistAt = now
	s.lastPersisted = s.position.Seconds
	return rec, true
}

// Flush returns the final record on teardown, ignoring the throttle
func (s *Synchronizer) Flush() (history.Record, bool) {
	switch {
	case s.switching:
		return s.record(s.snapshot)
	case s.ready:
		return s.record(s.position.Seconds)
	default:
		return history.Record{}, false
	}
}

// Detach stops tracking once the source is replaced by one that reports no
// position, such as an embedded player. It returns the final record of the
// detached source; its last position becomes the resume candidate.
func (s *Synchronizer) Detach() (history.Record, bool) {
	rec, ok := s.Flush()
	switch {
	case s.switching:
		s.pendingResume = s.snapshot
	case s.ready:
		s.pendingResume = s.position.Seconds
	default:
		return rec, ok
	}
	s.automatic = false
	s.switching = false
	s.ready = false
	return rec, ok
}

// ResumeTarget returns the position a re-resolution should resume at
func (s *Synchronizer) ResumeTarget() float64 {
	switch {
	case s.switching:
		return s.snapshot
	case s.ready:
		return s.position.Seconds
	default:
		return s.pendingResume
	}
}

// Position returns the tracked position
func (s *Synchronizer) Position() PlaybackPosition {
	return s.position
}

// Duration returns the known duration in seconds, 0 if unknown
func (s *Synchronizer) Duration() float64 {
	return s.duration
}

// Ready reports whether a source is loaded and positions are tracked
func (s *Synchronizer) Ready() bool {
	return s.ready
}

// record builds a history record for position seconds.
// Progress is truncated and clamped to the truncated duration.
func (s *Synchronizer) record(seconds float64) (history.Record, bool) {
	duration := int(s.duration)
	if duration <= 0 || s.episode.EpisodeID == "" {
		return history.Record{}, false
	}

	progress := int(math.Trunc(seconds))
	if progress < 0 {
		progress = 0
	}
	if progress > duration {
		progress = duration
	}

	return history.Record{
		SeriesID:        s.episode.SeriesID,
		SeriesTitle:     s.seriesTitle,
		EpisodeID:       s.episode.EpisodeID,
		EpisodeNumber:   s.episode.Number,
		ProgressSeconds: progress,
		DurationSeconds: duration,
		LastWatchedAt:   s.now(),
		Language:        string(s.episode.Language),
		Provider:        string(s.provider),
	}, true
}
