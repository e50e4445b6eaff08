package playback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justchokingaround/watchengine/internal/providers"
)

var (
	// ErrTransitionInProgress is returned for requests made while transitioning
	ErrTransitionInProgress = errors.New("episode transition already in progress")
	// ErrNoEpisode is returned when there is no episode in the requested direction
	ErrNoEpisode = errors.New("no episode in that direction")
)

// NavState is the state of the navigator
type NavState int

const (
	Stationary NavState = iota
	Transitioning
)

func (s NavState) String() string {
	if s == Transitioning {
		return "transitioning"
	}
	return "stationary"
}

// Direction of an episode transition
type Direction int

const (
	Previous Direction = iota
	Next
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// Cause is what requested a transition
type Cause int

const (
	CauseUser Cause = iota
	CauseRemote
	CauseEndOfStream
)

func (c Cause) String() string {
	switch c {
	case CauseRemote:
		return "remote"
	case CauseEndOfStream:
		return "end-of-stream"
	default:
		return "user"
	}
}

// PresentationMode is how the player is presented
type PresentationMode string

const (
	ModeFullScreen PresentationMode = "fullscreen"
	ModeInline     PresentationMode = "inline"
)

// ParsePresentationMode parses "fullscreen" or "inline"
func ParsePresentationMode(s string) (PresentationMode, error) {
	switch PresentationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFullScreen:
		return ModeFullScreen, nil
	case ModeInline:
		return ModeInline, nil
	default:
		return "", fmt.Errorf("invalid presentation mode %q: must be fullscreen or inline", s)
	}
}

// Strategy is how a transition is carried out
type Strategy int

const (
	// StrategySeamless swaps the episode in place
	StrategySeamless Strategy = iota
	// StrategyFullNavigation hands off to the router and ends the session
	StrategyFullNavigation
)

func (s Strategy) String() string {
	if s == StrategySeamless {
		return "seamless"
	}
	return "full-navigation"
}

// Transition describes an accepted navigation request
type Transition struct {
	Direction Direction
	Cause     Cause
	Strategy  Strategy
	From      int
	To        int
	Target    providers.EpisodeSummary
	// Automatic is set for transitions nobody asked for
	Automatic bool
	// ResumeHint is the start position of full navigations, always 0
	ResumeHint float64
}

// Navigator is the episode navigation state machine. It is not safe for
// concurrent use.
type Navigator struct {
	episodes []providers.EpisodeSummary
	index    int
	mode     PresentationMode
	state    NavState
}

// NewNavigator creates a navigator positioned at index within episodes
func NewNavigator(episodes []providers.EpisodeSummary, index int, mode PresentationMode) *Navigator {
	n := &Navigator{mode: mode}
	n.SetEpisodes(episodes, index)
	return n
}

// SetEpisodes replaces the episode list. An out-of-range index is clamped.
func (n *Navigator) SetEpisodes(episodes []providers.EpisodeSummary, index int) {
	n.episodes = append([]providers.EpisodeSummary(nil), episodes...)
	switch {
	case len(n.episodes) == 0:
		index = -1
	case index < 0:
		index = 0
	case index >= len(n.episodes):
		index = len(n.episodes) - 1
	}
	n.index = index
}

// SetMode changes the presentation mode used for the next request
func (n *Navigator) SetMode(mode PresentationMode) {
	n.mode = mode
}

// Mode returns the presentation mode
func (n *Navigator) Mode() PresentationMode {
	return n.mode
}

// State returns the navigation state
func (n *Navigator) State() NavState {
	return n.state
}

// Index returns the current episode index, -1 when the list is empty
func (n *Navigator) Index() int {
	return n.index
}

// Current returns the current episode
func (n *Navigator) Current() (providers.EpisodeSummary, bool) {
	if n.index < 0 || n.index >= len(n.episodes) {
		return providers.EpisodeSummary{}, false
	}
	return n.episodes[n.index], true
}

// HasPrevious reports whether a previous episode exists
func (n *Navigator) HasPrevious() bool {
	return n.index > 0
}

// HasNext reports whether a next episode exists
func (n *Navigator) HasNext() bool {
	return n.index >= 0 && n.index < len(n.episodes)-1
}

// Request starts a transition. Requests while Transitioning are rejected with
// ErrTransitionInProgress and change nothing. End-of-stream always uses full
// navigation; otherwise full-screen presentation transitions seamlessly.
// A seamless transition moves the index immediately.
func (n *Navigator) Request(dir Direction, cause Cause) (Transition, error) {
	if n.state == Transitioning {
		return Transition{}, ErrTransitionInProgress
	}

	target := n.index + 1
	if dir == Previous {
		target = n.index - 1
	}
	if n.index < 0 || target < 0 || target >= len(n.episodes) {
		return Transition{}, ErrNoEpisode
	}

	strategy := StrategyFullNavigation
	if cause != CauseEndOfStream && n.mode == ModeFullScreen {
		strategy = StrategySeamless
	}

	t := Transition{
		Direction: dir,
		Cause:     cause,
		Strategy:  strategy,
		From:      n.index,
		To:        target,
		Target:    n.episodes[target],
		Automatic: cause == CauseEndOfStream,
	}

	n.state = Transitioning
	if strategy == StrategySeamless {
		n.index = target
	}
	return t, nil
}

// Complete returns to Stationary after a seamless transition settles
func (n *Navigator) Complete() {
	n.state = Stationary
}
