package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/watchengine/internal/mediasession"
	"github.com/justchokingaround/watchengine/internal/player"
	"github.com/justchokingaround/watchengine/internal/player/mpv"
	"github.com/justchokingaround/watchengine/internal/playback"
	"github.com/justchokingaround/watchengine/internal/tui/nowplaying"
)

const lookupTimeout = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <series-id> <episode>",
	Short: "Watch an episode in mpv",
	Long: `Resolves the episode through the chosen provider and plays it in mpv.
The now playing panel offers previous/next; in fullscreen mode episodes change
in place, in inline mode each episode starts a fresh session.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := eng.Load()

		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid episode number %q: %w", args[1], err)
		}
		providerName, _ := cmd.Flags().GetString("provider")
		kind, err := e.providerKind(providerName)
		if err != nil {
			return err
		}
		modeName, _ := cmd.Flags().GetString("mode")
		if modeName == "" {
			modeName = e.cfg.Playback.PresentationMode
		}
		mode, err := playback.ParsePresentationMode(modeName)
		if err != nil {
			return err
		}
		noPanel, _ := cmd.Flags().GetBool("no-panel")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		episode, _, err := e.episode(lookupCtx, args[0], number)
		cancel()
		if err != nil {
			return err
		}

		params := playback.WatchParams{Episode: episode, Provider: kind, Mode: mode}
		if cmd.Flags().Changed("resume") {
			resume, _ := cmd.Flags().GetFloat64("resume")
			params.Resume = &resume
		}

		p, err := mpv.NewFromConfig(e.cfg, logger)
		if err != nil {
			return err
		}

		w := &watcher{
			player: p,
			router: newWatchRouter(logger),
			logger: logger,
		}
		if !noPanel && e.cfg.MediaSession.Enabled {
			w.surface = nowplaying.NewSurface()
		}
		return w.run(ctx, params)
	},
}

func init() {
	watchCmd.Flags().StringP("provider", "p", "", "provider to use: direct, catalog or embed (default from config)")
	watchCmd.Flags().StringP("mode", "m", "", "presentation mode: fullscreen or inline (default from config)")
	watchCmd.Flags().Float64("resume", 0, "start position in seconds (default: resume from history)")
	watchCmd.Flags().Bool("no-panel", false, "do not show the now playing panel")
}

// watcher runs watch sessions back to back, following full navigations
type watcher struct {
	player  player.Player
	surface *nowplaying.Surface // nil disables the media session
	router  *watchRouter
	logger  *slog.Logger
}

func (w *watcher) run(ctx context.Context, params playback.WatchParams) error {
	panelDone := make(chan error, 1)
	if w.surface != nil {
		panelCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { panelDone <- w.surface.Run(panelCtx) }()
	}

	for {
		session, err := w.start(ctx, params)
		if err != nil {
			return err
		}

		select {
		case <-session.Done():
			next, ok := w.router.take()
			if !ok {
				w.logger.Info("watch session ended", "episode", session.Snapshot().Episode.Number)
				return nil
			}
			params = next

		case err := <-panelDone:
			_ = session.Close()
			if err != nil && !errors.Is(err, nowplaying.ErrQuit) {
				return err
			}
			return nil

		case <-ctx.Done():
			return session.Close()
		}
	}
}

func (w *watcher) start(ctx context.Context, params playback.WatchParams) (*playback.Session, error) {
	// the engine is reloaded with the config, so pick it up per session
	e := eng.Load()

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	series, err := e.lookup.GetSeriesDetails(lookupCtx, params.Episode.SeriesID)
	cancel()
	if err != nil {
		// navigation is disabled without an episode list, playback still works
		w.logger.Warn("failed to load series details", "series_id", params.Episode.SeriesID, "error", err)
		series = nil
	}

	deps := playback.Dependencies{
		Orchestrator: e.orchestrator(),
		Player:       w.player,
		History:      e.history,
		Preferences:  e.prefs,
		Router:       w.router,
		Embeds:       browserOpener{},
		Logger:       w.logger,
		OnChange:     w.logChange(),
	}
	if w.surface != nil {
		deps.Bridge = mediasession.NewBridge(w.surface, mediasession.Config{
			RefreshInterval: e.cfg.MediaSession.RefreshInterval,
			PollInterval:    e.cfg.MediaSession.PollInterval,
		}, w.logger)
	}

	session, err := playback.NewSession(playback.SessionConfig{
		ID:        uuid.NewString(),
		Series:    series,
		Episode:   params.Episode,
		Provider:  params.Provider,
		Mode:      params.Mode,
		Resume:    params.Resume,
		Automatic: params.Automatic,
	}, deps)
	if err != nil {
		return nil, err
	}
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watch session: %w", err)
	}
	return session, nil
}

// logChange logs resolution outcomes as they change
func (w *watcher) logChange() func(playback.SessionSnapshot) {
	var last playback.State
	var lastGeneration uint64
	return func(s playback.SessionSnapshot) {
		r := s.Resolution
		if r.State == last && r.Generation == lastGeneration {
			return
		}
		last, lastGeneration = r.State, r.Generation

		switch r.State {
		case playback.StateReady:
			w.logger.Info("stream resolved",
				"episode", s.Episode.Number,
				"provider", r.Provider,
				"quality", r.CurrentQuality,
				"qualities", len(r.Qualities))
		case playback.StateFailed:
			w.logger.Error("stream resolution failed",
				"episode", s.Episode.Number,
				"provider", r.Provider,
				"error", r.Err)
		}
	}
}

// watchRouter receives the hand-off of full navigations
type watchRouter struct {
	next   chan playback.WatchParams
	logger *slog.Logger
}

var _ playback.Router = (*watchRouter)(nil)

func newWatchRouter(logger *slog.Logger) *watchRouter {
	return &watchRouter{next: make(chan playback.WatchParams, 1), logger: logger}
}

// NavigateTo keeps only the latest destination
func (r *watchRouter) NavigateTo(route string, params map[string]string) {
	if route != playback.RouteWatch {
		r.logger.Warn("ignoring navigation to unknown route", "route", route)
		return
	}
	parsed, err := playback.ParseWatchParams(params)
	if err != nil {
		r.logger.Error("invalid watch params", "error", err)
		return
	}
	select {
	case <-r.next:
	default:
	}
	r.next <- parsed
}

func (r *watchRouter) take() (playback.WatchParams, bool) {
	select {
	case params := <-r.next:
		return params, true
	default:
		return playback.WatchParams{}, false
	}
}

// browserOpener shows embedded-player wrappers in the default browser
type browserOpener struct{}

func (browserOpener) Open(url string) error {
	return browser.OpenURL(url)
}
