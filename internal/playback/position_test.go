package playback

import (
	"testing"
	"time"

	"github.com/justchokingaround/watchengine/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpisode = providers.EpisodeRef{EpisodeID: "ep-2", SeriesID: "frieren", Number: 2, Language: providers.LanguageSub}

func TestAcceptResume(t *testing.T) {
	tests := []struct {
		name      string
		resume    float64
		duration  float64
		automatic bool
		want      bool
	}{
		{"no resume position", 0, 1440, false, false},
		{"middle of episode", 600, 1440, false, true},
		{"within ten seconds of the end", 1435, 1440, false, false},
		{"exactly ten seconds before the end", 1430, 1440, false, true},
		{"past the end", 1500, 1440, false, false},
		{"unknown duration", 600, 0, false, false},
		{"short position after user navigation", 5, 1440, false, true},
		{"short position after automatic navigation", 5, 1440, true, false},
		{"ten seconds after automatic navigation", 10, 1440, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AcceptResume(tt.resume, tt.duration, tt.automatic))
		})
	}
}

func TestSynchronizer_SourceLoaded(t *testing.T) {
	t.Run("honors accepted resume position", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 600, false)

		assert.False(t, s.Ready())
		assert.Equal(t, 600.0, s.SourceLoaded(1440))
		assert.True(t, s.Ready())
		assert.Equal(t, 1440.0, s.Duration())
	})

	t.Run("restarts when resume is near the end", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 1435, false)

		assert.Equal(t, 0.0, s.SourceLoaded(1440))
	})

	t.Run("restarts short positions after automatic navigation", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 7, true)

		assert.Equal(t, 0.0, s.SourceLoaded(1440))
	})
}

func TestSynchronizer_SwitchRestoresPosition(t *testing.T) {
	t.Run("near the end", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)
		s.Observe(1432.4, 1440)

		s.BeginSwitch()
		assert.False(t, s.Ready())

		// reports from the old source are ignored while switching
		_, ok := s.Observe(3, 1440)
		assert.False(t, ok)

		assert.InDelta(t, 1432.4, s.SourceLoaded(1440), 1)
		assert.True(t, s.Ready())
	})

	t.Run("short position after automatic navigation", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, true)
		s.SourceLoaded(1440)
		s.Observe(5, 1440)

		s.BeginSwitch()
		assert.InDelta(t, 5.0, s.SourceLoaded(1440), 1)
	})

	t.Run("clamped to a shorter source", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)
		s.Observe(1420, 1440)

		s.BeginSwitch()
		assert.Equal(t, 1400.0, s.SourceLoaded(1400))
	})

	t.Run("before the first load keeps the resume candidate", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 600, false)

		s.BeginSwitch()
		assert.Equal(t, 600.0, s.ResumeTarget())
		assert.Equal(t, 600.0, s.SourceLoaded(1440))
	})

	t.Run("second switch keeps the first snapshot", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)
		s.Observe(300, 1440)

		s.BeginSwitch()
		s.BeginSwitch()
		assert.Equal(t, 300.0, s.ResumeTarget())
		assert.Equal(t, 300.0, s.SourceLoaded(1440))
	})
}

func TestSynchronizer_Throttle(t *testing.T) {
	clock := newFakeClock()
	s := NewSynchronizer(clock.Now)
	s.BeginEpisode(testEpisode, 0, false)
	s.SourceLoaded(1440)

	rec, ok := s.Observe(100, 1440)
	require.True(t, ok, "first report is persisted")
	assert.Equal(t, 100, rec.ProgressSeconds)

	clock.Advance(time.Second)
	_, ok = s.Observe(101, 1440)
	assert.False(t, ok, "within the persist interval")

	clock.Advance(time.Second)
	rec, ok = s.Observe(102, 1440)
	require.True(t, ok, "persist interval elapsed")
	assert.Equal(t, 102, rec.ProgressSeconds)

	clock.Advance(500 * time.Millisecond)
	rec, ok = s.Observe(300, 1440)
	require.True(t, ok, "seek jump is persisted immediately")
	assert.Equal(t, 300, rec.ProgressSeconds)

	clock.Advance(500 * time.Millisecond)
	_, ok = s.Observe(304, 1440)
	assert.False(t, ok, "small jump waits for the interval")

	clock.Advance(500 * time.Millisecond)
	rec, ok = s.Observe(200, 1440)
	require.True(t, ok, "backward seek is persisted immediately")
	assert.Equal(t, 200, rec.ProgressSeconds)

	clock.Advance(500 * time.Millisecond)
	rec, ok = s.Observe(205.9, 1440)
	require.True(t, ok, "a 5.9s jump is persisted even though whole seconds differ by 5")
	assert.Equal(t, 205, rec.ProgressSeconds)

	clock.Advance(500 * time.Millisecond)
	_, ok = s.Observe(210.5, 1440)
	assert.False(t, ok, "jumps are measured from the untruncated persisted position")
}

func TestSynchronizer_Records(t *testing.T) {
	t.Run("fields and truncation", func(t *testing.T) {
		clock := newFakeClock()
		s := NewSynchronizer(clock.Now)
		s.SetMetadata("Frieren", providers.KindSecondaryCatalog)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440.9)

		rec, ok := s.Observe(12.9, 1440.9)
		require.True(t, ok)
		assert.Equal(t, "frieren", rec.SeriesID)
		assert.Equal(t, "Frieren", rec.SeriesTitle)
		assert.Equal(t, "ep-2", rec.EpisodeID)
		assert.Equal(t, 2, rec.EpisodeNumber)
		assert.Equal(t, 12, rec.ProgressSeconds)
		assert.Equal(t, 1440, rec.DurationSeconds)
		assert.Equal(t, "sub", rec.Language)
		assert.Equal(t, "catalog", rec.Provider)
		assert.Equal(t, clock.Now(), rec.LastWatchedAt)
	})

	t.Run("progress never exceeds duration", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)

		rec, ok := s.Observe(1450.5, 1440)
		require.True(t, ok)
		assert.Equal(t, 1440, rec.ProgressSeconds)
		assert.LessOrEqual(t, rec.ProgressSeconds, rec.DurationSeconds)
	})

	t.Run("negative positions become zero", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)

		rec, ok := s.Observe(-3, 1440)
		require.True(t, ok)
		assert.Equal(t, 0, rec.ProgressSeconds)
	})

	t.Run("nothing is written while the duration is unknown", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(0)

		_, ok := s.Observe(100, 0)
		assert.False(t, ok)
		_, ok = s.Flush()
		assert.False(t, ok)
	})

	t.Run("reports before the source loads are ignored", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)

		_, ok := s.Observe(100, 1440)
		assert.False(t, ok)
		assert.Equal(t, 0.0, s.Position().Seconds)
	})
}

func TestSynchronizer_Flush(t *testing.T) {
	t.Run("ignores the throttle", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)
		s.Observe(100, 1440)
		_, ok := s.Observe(101, 1440)
		require.False(t, ok)

		rec, ok := s.Flush()
		require.True(t, ok)
		assert.Equal(t, 101, rec.ProgressSeconds)
	})

	t.Run("uses the snapshot while switching", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 0, false)
		s.SourceLoaded(1440)
		s.Observe(700, 1440)
		s.BeginSwitch()

		rec, ok := s.Flush()
		require.True(t, ok)
		assert.Equal(t, 700, rec.ProgressSeconds)
	})

	t.Run("nothing before the first load", func(t *testing.T) {
		s := NewSynchronizer(newFakeClock().Now)
		s.BeginEpisode(testEpisode, 600, false)

		_, ok := s.Flush()
		assert.False(t, ok)
	})
}

func TestSynchronizer_Detach(t *testing.T) {
	s := NewSynchronizer(newFakeClock().Now)
	s.BeginEpisode(testEpisode, 0, false)
	s.SourceLoaded(1440)
	s.Observe(300, 1440)
	s.BeginSwitch()

	rec, ok := s.Detach()
	require.True(t, ok)
	assert.Equal(t, 300, rec.ProgressSeconds)
	assert.False(t, s.Ready())

	_, ok = s.Observe(600, 1440)
	assert.False(t, ok, "a detached synchronizer ignores reports")
	_, ok = s.Flush()
	assert.False(t, ok, "nothing is left to flush")
	assert.InDelta(t, 300, s.ResumeTarget(), 0.001)

	assert.InDelta(t, 300, s.SourceLoaded(1440), 0.001, "the next source resumes at the detached position")
}
