package playback

import (
	"context"
	"sync"
	"time"

	"github.com/justchokingaround/watchengine/internal/history"
	"github.com/justchokingaround/watchengine/internal/manifest"
	"github.com/justchokingaround/watchengine/internal/mediasession"
	"github.com/justchokingaround/watchengine/internal/player"
	"github.com/justchokingaround/watchengine/internal/providers"
	"github.com/justchokingaround/watchengine/internal/skip"
)

// fakeAdapter resolves through a test-provided function and records requests
type fakeAdapter struct {
	kind    providers.Kind
	resolve func(ctx context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error)

	mu       sync.Mutex
	requests []providers.ResolveRequest
}

func (a *fakeAdapter) Kind() providers.Kind { return a.kind }
func (a *fakeAdapter) Name() string         { return "Fake " + string(a.kind) }

func (a *fakeAdapter) Resolve(ctx context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return a.resolve(ctx, req)
}

func (a *fakeAdapter) calls() []providers.ResolveRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]providers.ResolveRequest(nil), a.requests...)
}

// fileAdapter returns one progressive source per episode id
func fileAdapter(kind providers.Kind) *fakeAdapter {
	return &fakeAdapter{
		kind: kind,
		resolve: func(_ context.Context, req providers.ResolveRequest) (*providers.StreamDescriptor, error) {
			return &providers.StreamDescriptor{
				Sources: []providers.VariantSource{{
					URL: "https://cdn.test/" + string(kind) + "/" + req.Episode.EpisodeID + "/" + string(req.EffectiveLanguage()) + ".mp4",
				}},
			}, nil
		},
	}
}

func newRegistry(adapters ...providers.Adapter) *providers.Registry {
	r := providers.NewRegistry()
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

type fakeParser struct {
	ladder []manifest.QualityVariant

	mu   sync.Mutex
	urls []string
}

func (p *fakeParser) Qualities(_ context.Context, manifestURL string, _ map[string]string) []manifest.QualityVariant {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, manifestURL)
	return append([]manifest.QualityVariant(nil), p.ladder...)
}

type fakeSkips struct {
	times *skip.Times
	calls int
}

func (f *fakeSkips) GetSkipTimes(_ context.Context, _, _ int) (*skip.Times, error) {
	f.calls++
	return f.times, nil
}

type fakePlayer struct {
	mu         sync.Mutex
	plays      []string
	options    []player.PlayOptions
	seeks      []time.Duration
	stops      int
	onProgress func(player.PlaybackProgress)
	onLoaded   func(time.Duration)
	onEnd      func()
	onExit     func()
	onError    func(error)
}

func (p *fakePlayer) Play(_ context.Context, url string, opts player.PlayOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, url)
	p.options = append(p.options, opts)
	return nil
}

func (p *fakePlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) GetProgress(context.Context) (*player.PlaybackProgress, error) {
	return &player.PlaybackProgress{}, nil
}

func (p *fakePlayer) Seek(_ context.Context, position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, position)
	return nil
}

func (p *fakePlayer) OnProgressUpdate(cb func(player.PlaybackProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress = cb
}

func (p *fakePlayer) OnFileLoaded(cb func(time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoaded = cb
}

func (p *fakePlayer) OnPlaybackEnd(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnd = cb
}

func (p *fakePlayer) OnExit(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = cb
}

func (p *fakePlayer) OnError(cb func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = cb
}

func (p *fakePlayer) IsPlaying() bool { return true }
func (p *fakePlayer) IsPaused() bool  { return false }

func (p *fakePlayer) loaded(seconds float64) {
	p.mu.Lock()
	cb := p.onLoaded
	p.mu.Unlock()
	cb(time.Duration(seconds * float64(time.Second)))
}

func (p *fakePlayer) progress(position, duration float64) {
	p.mu.Lock()
	cb := p.onProgress
	p.mu.Unlock()
	cb(player.PlaybackProgress{
		CurrentTime: time.Duration(position * float64(time.Second)),
		Duration:    time.Duration(duration * float64(time.Second)),
	})
}

func (p *fakePlayer) end() {
	p.mu.Lock()
	cb := p.onEnd
	p.mu.Unlock()
	cb()
}

func (p *fakePlayer) exit() {
	p.mu.Lock()
	cb := p.onExit
	p.mu.Unlock()
	cb()
}

func (p *fakePlayer) playURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.plays...)
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) seekList() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.seeks...)
}

type fakeHistory struct {
	// gate, when set, holds every Upsert until it is closed
	gate chan struct{}

	mu      sync.Mutex
	stored  map[string]history.Record
	upserts []history.Record
}

func newFakeHistory(records ...history.Record) *fakeHistory {
	h := &fakeHistory{stored: make(map[string]history.Record)}
	for _, r := range records {
		h.stored[r.EpisodeID] = r
	}
	return h
}

func (h *fakeHistory) Upsert(_ context.Context, r history.Record) error {
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stored[r.EpisodeID] = r
	h.upserts = append(h.upserts, r)
	return nil
}

func (h *fakeHistory) Query(_ context.Context, episodeID string) (*history.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.stored[episodeID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (h *fakeHistory) get(episodeID string) (history.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.stored[episodeID]
	return r, ok
}

func (h *fakeHistory) writes() []history.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Record(nil), h.upserts...)
}

type fakePreferences struct {
	mu     sync.Mutex
	values map[string]string
}

func (p *fakePreferences) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *fakePreferences) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = make(map[string]string)
	}
	p.values[key] = value
	return nil
}

func (p *fakePreferences) get(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[key]
}

type routerCall struct {
	route  string
	params map[string]string
}

type fakeRouter struct {
	mu    sync.Mutex
	calls []routerCall
}

func (r *fakeRouter) NavigateTo(route string, params map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, routerCall{route: route, params: params})
}

func (r *fakeRouter) navigations() []routerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routerCall(nil), r.calls...)
}

type fakeBridge struct {
	mu        sync.Mutex
	states    []mediasession.State
	onCommand func(mediasession.Command)
	stopped   bool
}

func (b *fakeBridge) Start(_ context.Context, state mediasession.State, onCommand func(mediasession.Command)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, state)
	b.onCommand = onCommand
	return nil
}

func (b *fakeBridge) Update(state mediasession.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, state)
}

func (b *fakeBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBridge) last() mediasession.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[len(b.states)-1]
}

func (b *fakeBridge) command(cmd mediasession.Command) {
	b.mu.Lock()
	cb := b.onCommand
	b.mu.Unlock()
	cb(cmd)
}

func (b *fakeBridge) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
