// Package mediasession mirrors playback state into an OS-level transport
// control surface and forwards its remote commands.
package mediasession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSurfaceDismissed is returned by a Surface whose handle was dismissed externally
var ErrSurfaceDismissed = errors.New("media session surface dismissed")

// Default intervals
const (
	DefaultRefreshInterval = time.Second
	DefaultPollInterval    = 3 * time.Second
)

// State is what the surface shows
type State struct {
	Title        string
	EpisodeTitle string
	Playing      bool
	CurrentTime  float64 // seconds
	Duration     float64 // seconds, 0 if unknown
	HasPrevious  bool
	HasNext      bool
}

// Command is a remote transport command
type Command string

const (
	CommandPrevious Command = "previous"
	CommandNext     Command = "next"
)

// Handle identifies one presented surface
type Handle uint64

// Surface is the OS transport-control surface
type Surface interface {
	Present(state State) (Handle, error)
	Update(h Handle, state State) error
	Dismiss(h Handle) error
	// Active reports whether h is still shown
	Active(h Handle) bool
	// OnRemoteCommand subscribes to remote commands; the returned func unsubscribes
	OnRemoteCommand(callback func(Command)) (unsubscribe func())
}

// Config holds the bridge intervals
type Config struct {
	RefreshInterval time.Duration
	PollInterval    time.Duration
}

// Bridge owns the MediaSessionState of a watch session
type Bridge struct {
	surface Surface
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       State
	updatedAt   time.Time
	handle      Handle
	presented   bool
	running     bool
	onCommand   func(Command)
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewBridge creates a bridge for surface
func NewBridge(surface Surface, cfg Config, logger *slog.Logger) *Bridge {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		surface: surface,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start presents the surface and starts the refresh and dismissal-poll
// loops. onCommand receives previous/next only while the matching flag is set.
func (b *Bridge) Start(ctx context.Context, state State, onCommand func(Command)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.state = state
		b.updatedAt = b.now()
		return b.pushLocked()
	}

	b.state = state
	b.updatedAt = b.now()
	b.onCommand = onCommand

	if err := b.presentLocked(); err != nil {
		return err
	}
	b.unsubscribe = b.surface.OnRemoteCommand(b.handleCommand)

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	go b.run(loopCtx, b.done)

	return nil
}

// Update mirrors a new state into the surface
func (b *Bridge) Update(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = state
	b.updatedAt = b.now()
	if !b.running {
		return
	}
	if err := b.pushLocked(); err != nil {
		b.logger.Debug("media session update failed", "error", err)
	}
}

// State returns the last mirrored state
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stop tears the surface down. It is safe to call at any time, more than once.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.running = false
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	if b.presented {
		if err := b.surface.Dismiss(b.handle); err != nil && !errors.Is(err, ErrSurfaceDismissed) {
			b.logger.Debug("media session dismiss failed", "error", err)
		}
		b.presented = false
	}
	b.onCommand = nil
}

func (b *Bridge) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	refresh := time.NewTicker(b.cfg.RefreshInterval)
	defer refresh.Stop()
	poll := time.NewTicker(b.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			b.refresh()
		case <-poll.C:
			b.checkPresent()
		}
	}
}

// refresh pushes the last state with the play position advanced by the
// time elapsed since it was reported
func (b *Bridge) refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running || !b.presented {
		return
	}
	state := b.liveStateLocked()
	if err := b.surface.Update(b.handle, state); err != nil {
		if errors.Is(err, ErrSurfaceDismissed) {
			b.restoreLocked()
			return
		}
		b.logger.Debug("media session refresh failed", "error", err)
	}
}

func (b *Bridge) checkPresent() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	if b.presented && b.surface.Active(b.handle) {
		return
	}
	b.restoreLocked()
}

// caller holds b.mu
func (b *Bridge) restoreLocked() {
	b.logger.Debug("media session surface missing, restoring", "title", b.state.Title)
	b.presented = false
	if err := b.presentLocked(); err != nil {
		b.logger.Warn("failed to restore media session", "error", err)
	}
}

// caller holds b.mu
func (b *Bridge) presentLocked() error {
	h, err := b.surface.Present(b.liveStateLocked())
	if err != nil {
		return err
	}
	b.handle = h
	b.presented = true
	return nil
}

// caller holds b.mu
func (b *Bridge) pushLocked() error {
	if !b.presented {
		return b.presentLocked()
	}
	err := b.surface.Update(b.handle, b.state)
	if errors.Is(err, ErrSurfaceDismissed) {
		b.presented = false
		return b.presentLocked()
	}
	return err
}

// caller holds b.mu
func (b *Bridge) liveStateLocked() State {
	state := b.state
	if state.Playing && !b.updatedAt.IsZero() {
		state.CurrentTime += b.now().Sub(b.updatedAt).Seconds()
		if state.Duration > 0 && state.CurrentTime > state.Duration {
			state.CurrentTime = state.Duration
		}
	}
	return state
}

func (b *Bridge) handleCommand(cmd Command) {
	b.mu.Lock()
	allowed := b.running &&
		((cmd == CommandPrevious && b.state.HasPrevious) || (cmd == CommandNext && b.state.HasNext))
	forward := b.onCommand
	b.mu.Unlock()

	if !allowed || forward == nil {
		b.logger.Debug("ignoring remote command", "command", cmd)
		return
	}
	forward(cmd)
}
