package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/justchokingaround/watchengine/internal/history"
	"github.com/justchokingaround/watchengine/internal/mediasession"
	"github.com/justchokingaround/watchengine/internal/player"
	"github.com/justchokingaround/watchengine/internal/providers"
)

// LanguagePreferenceKey is the preference key of the remembered language mode
const LanguagePreferenceKey = "language_mode"

const (
	historyQueryTimeout = 3 * time.Second
	flushTimeout        = 5 * time.Second
	eventBuffer         = 64
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("watch session closed")

// HistoryStore persists history records
type HistoryStore interface {
	Upsert(ctx context.Context, record history.Record) error
	Query(ctx context.Context, episodeID string) (*history.Record, error)
}

// PreferenceStore is a key-value preference store
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Router performs full navigations
type Router interface {
	NavigateTo(route string, params map[string]string)
}

// EmbedOpener hands embedded-player wrapper URLs to whatever can show them
type EmbedOpener interface {
	Open(url string) error
}

// MediaBridge mirrors session state into the transport-control surface
type MediaBridge interface {
	Start(ctx context.Context, state mediasession.State, onCommand func(mediasession.Command)) error
	Update(state mediasession.State)
	Stop()
}

// SessionConfig describes the episode a session starts on
type SessionConfig struct {
	ID          string
	Series      *providers.SeriesDetails // may be nil; navigation is then disabled
	SeriesTitle string
	Episode     providers.EpisodeRef
	Provider    providers.Kind
	Mode        PresentationMode
	// Resume is the carried-over start position; nil consults history
	Resume    *float64
	Automatic bool
}

// Dependencies are the collaborators of a session. Only Orchestrator and
// Player are required.
type Dependencies struct {
	Orchestrator *Orchestrator
	Player       player.Player
	History      HistoryStore
	Preferences  PreferenceStore
	Router       Router
	Bridge       MediaBridge
	Embeds       EmbedOpener
	Logger       *slog.Logger
	Now          func() time.Time
	// OnChange is called from the session goroutine after every state change
	OnChange func(SessionSnapshot)
}

// SessionSnapshot is a read-only view of a session
type SessionSnapshot struct {
	ID           string
	Episode      providers.EpisodeRef
	EpisodeIndex int
	Navigation   NavState
	Mode         PresentationMode
	Resolution   Snapshot
	Position     PlaybackPosition
	Duration     float64
	Ready        bool
	Playing      bool
	Closed       bool
}

type (
	commandEvent struct {
		fn    func() error
		reply chan error
	}
	resolvedEvent  struct{ result Result }
	progressEvent  struct{ progress player.PlaybackProgress }
	loadedEvent    struct{ duration time.Duration }
	endEvent       struct{}
	exitEvent      struct{}
	playerErrEvent struct{ err error }
)

// Session is one watch session. All state is owned by a single goroutine;
// exported methods post to it and wait for the result.
type Session struct {
	cfg    SessionConfig
	deps   Dependencies
	logger *slog.Logger

	orch *Orchestrator
	sync *Synchronizer
	nav  *Navigator

	provider     providers.Kind
	playing      bool
	awaitingLoad bool
	// embedded is set while the current source is an embedded player
	embedded bool
	closed       bool
	started      bool

	ctx        context.Context
	cancel     context.CancelFunc
	events     chan any
	done       chan struct{}
	writes     chan struct{}
	writerDone chan struct{}

	pendingMu sync.Mutex
	pending   []history.Record

	mu       sync.RWMutex
	snapshot SessionSnapshot
}

// NewSession creates a session; Start begins playback
func NewSession(cfg SessionConfig, deps Dependencies) (*Session, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Player == nil {
		return nil, fmt.Errorf("player is required")
	}
	if cfg.Episode.EpisodeID == "" {
		return nil, fmt.Errorf("episode id is required")
	}
	if cfg.Provider == "" {
		cfg.Provider = providers.KindDirectManifest
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeFullScreen
	}
	if cfg.SeriesTitle == "" && cfg.Series != nil {
		cfg.SeriesTitle = cfg.Series.Title
	}
	if cfg.Episode.SeriesID == "" && cfg.Series != nil {
		cfg.Episode.SeriesID = cfg.Series.ID
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Session{
		cfg:        cfg,
		deps:       deps,
		logger:     deps.Logger.With("session", cfg.ID),
		orch:       deps.Orchestrator,
		sync:       NewSynchronizer(deps.Now),
		provider:   cfg.Provider,
		events:     make(chan any, eventBuffer),
		done:       make(chan struct{}),
		writes:     make(chan struct{}, 1),
		writerDone: make(chan struct{}),
	}

	var episodes []providers.EpisodeSummary
	index := -1
	if cfg.Series != nil {
		episodes = cfg.Series.Episodes
		index = cfg.Series.FindEpisode(cfg.Episode.EpisodeID, cfg.Episode.Number)
	}
	s.nav = NewNavigator(episodes, index, cfg.Mode)
	if index < 0 {
		// the starting episode is not in the list, so there is nothing to navigate
		s.nav.SetEpisodes(nil, -1)
	}
	if cfg.Series != nil {
		s.orch.SetCrossReference(cfg.Series.CrossReference)
	}
	s.sync.SetMetadata(cfg.SeriesTitle, cfg.Provider)

	return s, nil
}

// Start runs the session and begins resolving the first episode
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	p := s.deps.Player
	p.OnProgressUpdate(func(progress player.PlaybackProgress) { s.post(progressEvent{progress}) })
	p.OnFileLoaded(func(d time.Duration) { s.post(loadedEvent{d}) })
	p.OnPlaybackEnd(func() { s.post(endEvent{}) })
	p.OnExit(func() { s.post(exitEvent{}) })
	p.OnError(func(err error) { s.post(playerErrEvent{err}) })

	go s.writeHistory()
	go s.run()

	return s.do(func() error {
		episode := s.cfg.Episode
		if episode.Language == "" {
			episode.Language = s.preferredLanguage()
		}

		var resume float64
		if s.cfg.Resume != nil {
			resume = *s.cfg.Resume
		} else {
			resume = s.storedPosition(episode.EpisodeID)
		}

		if s.deps.Bridge != nil {
			if err := s.deps.Bridge.Start(s.ctx, s.mediaState(episode), s.onRemoteCommand); err != nil {
				s.logger.Warn("failed to start media session", "error", err)
			}
		}

		s.load(TriggerInitial, episode, resume, s.cfg.Automatic)
		return nil
	})
}

// ChangeProvider re-resolves the current episode on another provider,
// keeping the playback position
func (s *Session) ChangeProvider(kind providers.Kind) error {
	return s.do(func() error {
		if kind == s.provider && s.orch.State() == StateReady {
			return nil
		}
		s.sync.BeginSwitch()
		s.provider = kind
		s.sync.SetMetadata(s.cfg.SeriesTitle, kind)
		s.resolve(s.orch.Begin(TriggerProvider, s.orch.Episode(), kind, s.sync.ResumeTarget()))
		return nil
	})
}

// ChangeLanguage replaces the episode ref with one in lang and remembers the
// choice
func (s *Session) ChangeLanguage(lang providers.LanguageMode) error {
	return s.do(func() error {
		current := s.orch.Episode()
		if current.Language == lang {
			return nil
		}
		s.rememberLanguage(lang)

		resume := s.sync.ResumeTarget()
		s.load(TriggerLanguage, current.WithLanguage(lang), resume, false)
		return nil
	})
}

// ChangeQuality switches to another entry of the quality ladder without
// re-resolving. The position is restored once the new source is loaded.
func (s *Session) ChangeQuality(label string) error {
	return s.do(func() error {
		url, err := s.orch.SelectQuality(label)
		if err != nil {
			return err
		}
		s.sync.BeginSwitch()
		return s.play(url, s.orch.Descriptor())
	})
}

// Retry re-resolves the current episode on the current provider
func (s *Session) Retry() error {
	return s.do(func() error {
		s.resolve(s.orch.Retry(s.sync.ResumeTarget()))
		return nil
	})
}

// Next moves to the next episode
func (s *Session) Next() error {
	return s.do(func() error { return s.navigate(Next, CauseUser) })
}

// Previous moves to the previous episode
func (s *Session) Previous() error {
	return s.do(func() error { return s.navigate(Previous, CauseUser) })
}

// SetPresentationMode changes how the next transition is carried out
func (s *Session) SetPresentationMode(mode PresentationMode) error {
	return s.do(func() error {
		s.nav.SetMode(mode)
		return nil
	})
}

// Seek moves the playback position of the current source
func (s *Session) Seek(seconds float64) error {
	return s.do(func() error {
		if !s.sync.Ready() {
			return ErrNotReady
		}
		if seconds < 0 {
			seconds = 0
		}
		return s.deps.Player.Seek(s.ctx, secondsToDuration(seconds))
	})
}

// Snapshot returns the state published after the last event
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Done is closed once the session has torn down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down, flushing the playback position
func (s *Session) Close() error {
	if !s.started {
		return nil
	}
	err := s.do(func() error {
		s.teardown()
		return nil
	})
	<-s.done
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
			if s.closed {
				return
			}
			s.publish()
		}
	}
}

func (s *Session) handle(ev any) {
	switch ev := ev.(type) {
	case commandEvent:
		ev.reply <- ev.fn()
	case resolvedEvent:
		s.onResolved(ev.result)
	case loadedEvent:
		s.onLoaded(ev.duration)
	case progressEvent:
		s.onProgress(ev.progress)
	case endEvent:
		s.onEnd()
	case exitEvent:
		s.logger.Info("player exited")
		s.teardown()
	case playerErrEvent:
		s.logger.Warn("player error", "error", ev.err)
	}
}

// post delivers ev to the session goroutine unless the session is gone
func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// do runs fn on the session goroutine and returns its error
func (s *Session) do(fn func() error) error {
	if !s.started {
		return ErrSessionClosed
	}
	reply := make(chan error, 1)
	select {
	case s.events <- commandEvent{fn: fn, reply: reply}:
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		// a command that ended the session still replied before the loop exited
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// load starts resolving a new episode ref
func (s *Session) load(trigger Trigger, episode providers.EpisodeRef, resume float64, automatic bool) {
	s.sync.BeginEpisode(episode, resume, automatic)
	s.awaitingLoad = false
	s.resolve(s.orch.Begin(trigger, episode, s.provider, resume))
}

func (s *Session) resolve(t Ticket) {
	s.publish()
	ctx := s.ctx
	go func() {
		result := s.orch.Run(ctx, t)
		s.post(resolvedEvent{result})
	}()
}

func (s *Session) onResolved(r Result) {
	if !s.orch.Complete(r) {
		return
	}
	if s.nav.State() == Transitioning {
		s.nav.Complete()
	}

	if r.Err != nil {
		s.awaitingLoad = false
		s.playing = false
		if err := s.deps.Player.Stop(s.ctx); err != nil {
			s.logger.Debug("failed to stop player", "error", err)
		}
		s.updateBridge()
		return
	}

	desc := s.orch.Descriptor()
	if primary, _ := desc.Primary(); primary.IsEmbeddedPlayer {
		s.detachPlayer()
		s.openEmbedded(primary.URL)
		s.updateBridge()
		return
	}
	if err := s.play(s.orch.CurrentSourceURL(), desc); err != nil {
		s.logger.Error("failed to start playback", "error", err)
	}
}

func (s *Session) play(url string, desc *providers.StreamDescriptor) error {
	episode := s.orch.Episode()
	opts := player.PlayOptions{
		Fullscreen: s.nav.Mode() == ModeFullScreen,
		Title:      s.displayTitle(episode),
	}
	if desc != nil {
		opts.Headers = desc.Headers
		opts.Referer = desc.Headers["Referer"]
		opts.UserAgent = desc.Headers["User-Agent"]
		if episode.Language == providers.LanguageSub {
			if sub, ok := preferredSubtitle(desc.Subtitles); ok {
				opts.SubtitleURL = sub.URL
				opts.SubtitleLang = sub.Language
			}
		}
	}

	s.embedded = false
	s.awaitingLoad = true
	if err := s.deps.Player.Play(s.ctx, url, opts); err != nil {
		s.awaitingLoad = false
		return fmt.Errorf("failed to play %s: %w", url, err)
	}
	s.logger.Debug("playing", "url", url, "episode", episode.Number)
	return nil
}

// detachPlayer stops the local player for a source it cannot play and
// persists where the stopped stream was
func (s *Session) detachPlayer() {
	s.embedded = true
	s.awaitingLoad = false
	s.playing = false
	if err := s.deps.Player.Stop(s.ctx); err != nil {
		s.logger.Debug("failed to stop player", "error", err)
	}
	if rec, ok := s.sync.Detach(); ok {
		s.enqueueWrite(rec)
	}
}

func (s *Session) openEmbedded(url string) {
	s.logger.Info("stream is an embedded player", "url", url)
	if s.deps.Embeds == nil {
		return
	}
	if err := s.deps.Embeds.Open(url); err != nil {
		s.logger.Warn("failed to open embedded player", "url", url, "error", err)
	}
}

// onLoaded restores the position once the new source reports itself loaded
func (s *Session) onLoaded(duration time.Duration) {
	if !s.awaitingLoad {
		return
	}
	s.awaitingLoad = false
	s.playing = true

	start := s.sync.SourceLoaded(duration.Seconds())
	if start > 0 {
		if err := s.deps.Player.Seek(s.ctx, secondsToDuration(start)); err != nil {
			s.logger.Warn("failed to restore position", "position", start, "error", err)
		}
	}
	s.updateBridge()
}

func (s *Session) onProgress(p player.PlaybackProgress) {
	if s.awaitingLoad || s.embedded {
		return
	}
	s.playing = !p.Paused
	if rec, ok := s.sync.Observe(p.CurrentTime.Seconds(), p.Duration.Seconds()); ok {
		s.enqueueWrite(rec)
	}
	s.updateBridge()
}

func (s *Session) onEnd() {
	if s.embedded {
		s.logger.Debug("dropping end of stream from a detached player")
		return
	}
	if s.nav.State() == Transitioning {
		s.logger.Debug("dropping end of stream during transition")
		return
	}
	if !s.nav.HasNext() {
		s.playing = false
		s.updateBridge()
		return
	}
	if err := s.navigate(Next, CauseEndOfStream); err != nil {
		s.logger.Debug("end of stream navigation rejected", "error", err)
	}
}

func (s *Session) onRemoteCommand(cmd mediasession.Command) {
	dir := Next
	if cmd == mediasession.CommandPrevious {
		dir = Previous
	}
	s.post(commandEvent{
		fn:    func() error { return s.navigate(dir, CauseRemote) },
		reply: make(chan error, 1),
	})
}

func (s *Session) navigate(dir Direction, cause Cause) error {
	t, err := s.nav.Request(dir, cause)
	if err != nil {
		return err
	}

	current := s.orch.Episode()
	target := providers.EpisodeRef{
		EpisodeID: t.Target.ID,
		SeriesID:  current.SeriesID,
		Number:    t.Target.Number,
		Language:  current.Language,
	}
	s.logger.Info("episode transition",
		"direction", t.Direction,
		"cause", t.Cause,
		"strategy", t.Strategy,
		"from", current.Number,
		"to", target.Number)

	if t.Strategy == StrategyFullNavigation {
		s.teardown()
		if s.deps.Router != nil {
			resume := t.ResumeHint
			s.deps.Router.NavigateTo(RouteWatch, WatchParams{
				Episode:   target,
				Provider:  s.provider,
				Mode:      s.nav.Mode(),
				Resume:    &resume,
				Automatic: t.Automatic,
			}.Encode())
		}
		return nil
	}

	if rec, ok := s.sync.Flush(); ok {
		s.enqueueWrite(rec)
	}
	s.playing = false

	resume := s.storedPosition(target.EpisodeID)
	s.load(TriggerNavigation, target, resume, t.Automatic)
	s.updateBridge()
	return nil
}

// teardown flushes the position and releases everything; safe to repeat
func (s *Session) teardown() {
	if s.closed {
		return
	}
	s.closed = true

	final, hasFinal := s.sync.Flush()

	s.cancel()
	if s.deps.Bridge != nil {
		s.deps.Bridge.Stop()
	}
	if err := s.deps.Player.Stop(context.Background()); err != nil {
		s.logger.Debug("failed to stop player", "error", err)
	}

	<-s.writerDone
	if hasFinal {
		s.enqueueWrite(final)
	}
	for _, rec := range s.takePending() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := s.deps.History.Upsert(ctx, rec); err != nil {
			s.logger.Warn("failed to flush history", "episode", rec.EpisodeNumber, "error", err)
		}
		cancel()
	}

	s.publish()
	s.logger.Debug("session closed")
}

// enqueueWrite queues rec for the writer goroutine. A queued record of the
// same episode is replaced; records of other episodes stay queued.
func (s *Session) enqueueWrite(rec history.Record) {
	if s.deps.History == nil {
		return
	}

	s.pendingMu.Lock()
	queued := false
	for i := range s.pending {
		if s.pending[i].EpisodeID == rec.EpisodeID {
			s.pending[i] = rec
			queued = true
			break
		}
	}
	if !queued {
		s.pending = append(s.pending, rec)
	}
	s.pendingMu.Unlock()

	select {
	case s.writes <- struct{}{}:
	default:
	}
}

func (s *Session) takePending() []history.Record {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	recs := s.pending
	s.pending = nil
	return recs
}

// writeHistory drains the queue until the session ends. A taken record is
// always written; what is left at the end is written by teardown.
func (s *Session) writeHistory() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.writes:
			for _, rec := range s.takePending() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), flushTimeout)
				if err := s.deps.History.Upsert(ctx, rec); err != nil {
					s.logger.Warn("failed to save history", "episode", rec.EpisodeNumber, "error", err)
				}
				cancel()
			}
		}
	}
}

func (s *Session) storedPosition(episodeID string) float64 {
	if s.deps.History == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(s.ctx, historyQueryTimeout)
	defer cancel()

	rec, err := s.deps.History.Query(ctx, episodeID)
	if err != nil {
		s.logger.Warn("failed to read history", "episode_id", episodeID, "error", err)
		return 0
	}
	if rec == nil {
		return 0
	}
	return float64(rec.ProgressSeconds)
}

func (s *Session) preferredLanguage() providers.LanguageMode {
	if s.deps.Preferences == nil {
		return providers.LanguageSub
	}
	ctx, cancel := context.WithTimeout(s.ctx, historyQueryTimeout)
	defer cancel()

	value, ok, err := s.deps.Preferences.Get(ctx, LanguagePreferenceKey)
	if err != nil {
		s.logger.Warn("failed to read language preference", "error", err)
	}
	if !ok {
		return providers.LanguageSub
	}
	lang, err := providers.ParseLanguageMode(value)
	if err != nil {
		return providers.LanguageSub
	}
	return lang
}

func (s *Session) rememberLanguage(lang providers.LanguageMode) {
	if s.deps.Preferences == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, historyQueryTimeout)
	defer cancel()
	if err := s.deps.Preferences.Set(ctx, LanguagePreferenceKey, string(lang)); err != nil {
		s.logger.Warn("failed to save language preference", "error", err)
	}
}

func (s *Session) updateBridge() {
	if s.deps.Bridge == nil || s.closed {
		return
	}
	s.deps.Bridge.Update(s.mediaState(s.orch.Episode()))
}

func (s *Session) mediaState(episode providers.EpisodeRef) mediasession.State {
	return mediasession.State{
		Title:        s.cfg.SeriesTitle,
		EpisodeTitle: s.episodeLabel(episode),
		Playing:      s.playing,
		CurrentTime:  s.sync.Position().Seconds,
		Duration:     s.sync.Duration(),
		HasPrevious:  s.nav.HasPrevious(),
		HasNext:      s.nav.HasNext(),
	}
}

func (s *Session) episodeLabel(episode providers.EpisodeRef) string {
	label := fmt.Sprintf("Episode %d", episode.Number)
	if current, ok := s.nav.Current(); ok && current.ID == episode.EpisodeID && current.Title != "" {
		label += ": " + current.Title
	}
	return label
}

func (s *Session) displayTitle(episode providers.EpisodeRef) string {
	if s.cfg.SeriesTitle == "" {
		return s.episodeLabel(episode)
	}
	return s.cfg.SeriesTitle + " - " + s.episodeLabel(episode)
}

func (s *Session) publish() {
	snap := SessionSnapshot{
		ID:           s.cfg.ID,
		Episode:      s.orch.Episode(),
		EpisodeIndex: s.nav.Index(),
		Navigation:   s.nav.State(),
		Mode:         s.nav.Mode(),
		Resolution:   s.orch.Snapshot(),
		Position:     s.sync.Position(),
		Duration:     s.sync.Duration(),
		Ready:        s.sync.Ready(),
		Playing:      s.playing,
		Closed:       s.closed,
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if s.deps.OnChange != nil {
		s.deps.OnChange(snap)
	}
}

// preferredSubtitle picks an English track, else the first one
func preferredSubtitle(subs []providers.Subtitle) (providers.Subtitle, bool) {
	for _, sub := range subs {
		lang := strings.ToLower(sub.Language)
		if strings.HasPrefix(lang, "en") {
			return sub, true
		}
	}
	if len(subs) > 0 {
		return subs[0], true
	}
	return providers.Subtitle{}, false
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
