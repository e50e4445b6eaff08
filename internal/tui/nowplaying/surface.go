// Package nowplaying renders the media session of a watch as a terminal
// transport-control panel.
package nowplaying

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/justchokingaround/watchengine/internal/mediasession"
)

// Surface implements mediasession.Surface. The panel shows whatever the
// active handle last presented; hiding it dismisses the handle.
type Surface struct {
	mu          sync.Mutex
	state       mediasession.State
	lastHandle  mediasession.Handle
	active      mediasession.Handle
	subscribers map[int]func(mediasession.Command)
	nextSub     int
}

var _ mediasession.Surface = (*Surface)(nil)

// NewSurface creates an empty surface
func NewSurface() *Surface {
	return &Surface{subscribers: make(map[int]func(mediasession.Command))}
}

// Present shows state under a new handle, replacing any previous one
func (s *Surface) Present(state mediasession.State) (mediasession.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastHandle++
	s.active = s.lastHandle
	s.state = state
	return s.active, nil
}

// Update replaces the state shown by h
func (s *Surface) Update(h mediasession.Handle, state mediasession.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == 0 || h != s.active {
		return mediasession.ErrSurfaceDismissed
	}
	s.state = state
	return nil
}

// Dismiss hides h
func (s *Surface) Dismiss(h mediasession.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == 0 || h != s.active {
		return mediasession.ErrSurfaceDismissed
	}
	s.active = 0
	return nil
}

// Active reports whether h is still shown
func (s *Surface) Active(h mediasession.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return h != 0 && h == s.active
}

// OnRemoteCommand subscribes callback to the panel's previous/next keys
func (s *Surface) OnRemoteCommand(callback func(mediasession.Command)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = callback
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// hide dismisses the panel from the terminal side
func (s *Surface) hide() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

// snapshot returns the shown state and whether anything is shown
func (s *Surface) snapshot() (mediasession.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.active != 0
}

func (s *Surface) dispatch(cmd mediasession.Command) {
	s.mu.Lock()
	callbacks := make([]func(mediasession.Command), 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(cmd)
	}
}

// Run shows the panel until the user quits or ctx is done.
// Quitting from the panel returns ErrQuit.
func (s *Surface) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(NewModel(s), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if m, ok := final.(Model); ok && m.quitting {
		return ErrQuit
	}
	return nil
}

// ErrQuit is returned by Run when the user quits from the panel
var ErrQuit = errors.New("quit from now playing panel")
