// Package playback resolves episodes into playable streams and keeps the
// playback position, episode navigation and history in sync for one watch
// session.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/justchokingaround/watchengine/internal/manifest"
	"github.com/justchokingaround/watchengine/internal/providers"
	"github.com/justchokingaround/watchengine/internal/skip"
)

// State is the resolution state of the orchestrator
type State int

const (
	StateIdle State = iota
	StateResolving
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger is the reason a resolution was started
type Trigger int

const (
	TriggerInitial Trigger = iota
	TriggerProvider
	TriggerLanguage
	TriggerRetry
	TriggerNavigation
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerProvider:
		return "provider"
	case TriggerLanguage:
		return "language"
	case TriggerRetry:
		return "retry"
	case TriggerNavigation:
		return "navigation"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// ErrUnknownQuality is returned by SelectQuality for labels not on the ladder
var ErrUnknownQuality = errors.New("unknown quality")

// ErrNotReady is returned when an operation needs a resolved stream
var ErrNotReady = errors.New("no resolved stream")

// QualityParser produces the quality ladder of an adaptive manifest
type QualityParser interface {
	Qualities(ctx context.Context, manifestURL string, headers map[string]string) []manifest.QualityVariant
}

// SkipLookup finds intro/outro ranges by MyAnimeList id
type SkipLookup interface {
	GetSkipTimes(ctx context.Context, malID, episode int) (*skip.Times, error)
}

// Ticket identifies one resolution attempt
type Ticket struct {
	Generation uint64
	Trigger    Trigger
	Provider   providers.Kind
	Request    providers.ResolveRequest
}

// Result is the outcome of Run for a Ticket
type Result struct {
	Ticket
	Descriptor *providers.StreamDescriptor
	Qualities  []manifest.QualityVariant
	Err        error
}

// Snapshot is a read-only copy of the orchestrator state
type Snapshot struct {
	State            State
	Generation       uint64
	Provider         providers.Kind
	Episode          providers.EpisodeRef
	Descriptor       *providers.StreamDescriptor
	Stale            bool
	Qualities        []manifest.QualityVariant
	CurrentSourceURL string
	CurrentQuality   string
	Err              *providers.ResolutionError
}

// Orchestrator owns the current StreamDescriptor. Begin, Complete and
// SelectQuality mutate state and must be called from one goroutine; Run only
// reads its Ticket and may run anywhere.
type Orchestrator struct {
	registry *providers.Registry
	parser   QualityParser
	skips    SkipLookup
	logger   *slog.Logger

	state      State
	generation uint64
	provider   providers.Kind
	episode    providers.EpisodeRef
	crossRef   providers.CrossReferenceIDs
	resumeAt   float64

	descriptor     *providers.StreamDescriptor
	stale          bool
	qualities      []manifest.QualityVariant
	currentURL     string
	currentQuality string
	err            *providers.ResolutionError
}

// NewOrchestrator creates an orchestrator dispatching through registry.
// parser and skips may be nil.
func NewOrchestrator(registry *providers.Registry, parser QualityParser, skips SkipLookup, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		parser:   parser,
		skips:    skips,
		logger:   logger,
	}
}

// SetCrossReference sets the series ids passed to every adapter
func (o *Orchestrator) SetCrossReference(ids providers.CrossReferenceIDs) {
	o.crossRef = ids
}

// Begin enters Resolving for episode on provider kind. The previous
// descriptor is kept but marked stale, except on navigation where it is
// cleared.
func (o *Orchestrator) Begin(trigger Trigger, episode providers.EpisodeRef, kind providers.Kind, resumeAt float64) Ticket {
	o.generation++
	o.state = StateResolving
	o.provider = kind
	o.episode = episode
	o.resumeAt = resumeAt
	o.err = nil

	if trigger == TriggerNavigation {
		o.clearDescriptor()
	} else if o.descriptor != nil {
		o.stale = true
	}

	o.logger.Debug("resolution started",
		"trigger", trigger,
		"provider", kind,
		"episode", episode.Number,
		"language", episode.Language,
		"generation", o.generation)

	return Ticket{
		Generation: o.generation,
		Trigger:    trigger,
		Provider:   kind,
		Request: providers.ResolveRequest{
			Episode:        episode,
			Language:       episode.Language,
			ResumeAt:       resumeAt,
			CrossReference: o.crossRef,
		},
	}
}

// Retry re-enters Resolving for the current episode and provider
func (o *Orchestrator) Retry(resumeAt float64) Ticket {
	return o.Begin(TriggerRetry, o.episode, o.provider, resumeAt)
}

// Run performs the I/O of a resolution: the adapter call, the quality ladder
// for adaptive manifests and skip-range enrichment.
func (o *Orchestrator) Run(ctx context.Context, t Ticket) Result {
	result := Result{Ticket: t}

	adapter, err := o.registry.Get(t.Provider)
	if err != nil {
		result.Err = providers.NewResolutionError(t.Provider, providers.ReasonTransport, err)
		return result
	}

	desc, err := adapter.Resolve(ctx, t.Request)
	if err != nil {
		result.Err = providers.AsResolutionError(t.Provider, err)
		return result
	}
	if desc == nil || len(desc.Sources) == 0 {
		result.Err = providers.NewResolutionError(t.Provider, providers.ReasonNoSources, nil)
		return result
	}
	if desc.Provider == "" {
		desc.Provider = t.Provider
	}

	if primary, _ := desc.Primary(); primary.IsAdaptiveManifest && o.parser != nil {
		result.Qualities = o.parser.Qualities(ctx, primary.URL, desc.Headers)
	}

	if o.skips != nil && desc.Intro == nil && desc.Outro == nil && t.Request.CrossReference.MALID != 0 {
		times, err := o.skips.GetSkipTimes(ctx, t.Request.CrossReference.MALID, t.Request.Episode.Number)
		if err != nil {
			o.logger.Debug("skip times unavailable", "error", err)
		} else if times != nil {
			desc.Intro = times.Intro
			desc.Outro = times.Outro
		}
	}

	result.Descriptor = desc
	return result
}

// Complete applies a Result. Results of superseded tickets are ignored and
// Complete returns false.
func (o *Orchestrator) Complete(r Result) bool {
	if r.Generation != o.generation {
		o.logger.Debug("dropping stale resolution", "generation", r.Generation, "current", o.generation)
		return false
	}

	o.registry.Record(r.Provider, r.Err)

	if r.Err != nil {
		o.clearDescriptor()
		o.state = StateFailed
		o.err = providers.AsResolutionError(r.Provider, r.Err)
		o.logger.Warn("resolution failed", "provider", r.Provider, "error", r.Err)
		return true
	}

	o.descriptor = r.Descriptor
	o.stale = false
	o.qualities = r.Qualities
	o.state = StateReady
	o.err = nil

	primary, _ := r.Descriptor.Primary()
	o.currentURL = primary.URL
	o.currentQuality = primary.Label
	if len(o.qualities) > 0 {
		o.currentURL = o.qualities[0].URL
		o.currentQuality = o.qualities[0].Label
	}

	o.logger.Info("stream resolved",
		"provider", r.Provider,
		"episode", r.Request.Episode.Number,
		"sources", len(r.Descriptor.Sources),
		"qualities", len(o.qualities))
	return true
}

// Resolve runs a full resolution synchronously
func (o *Orchestrator) Resolve(ctx context.Context, trigger Trigger, episode providers.EpisodeRef, kind providers.Kind, resumeAt float64) (Snapshot, error) {
	t := o.Begin(trigger, episode, kind, resumeAt)
	r := o.Run(ctx, t)
	o.Complete(r)
	if o.err != nil {
		return o.Snapshot(), o.err
	}
	return o.Snapshot(), nil
}

// SelectQuality switches the current source to the ladder entry with label.
// It never re-resolves.
func (o *Orchestrator) SelectQuality(label string) (string, error) {
	if o.state != StateReady {
		return "", ErrNotReady
	}
	for _, q := range o.qualities {
		if q.Label == label {
			o.currentURL = q.URL
			o.currentQuality = q.Label
			return q.URL, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownQuality, label)
}

// State returns the resolution state
func (o *Orchestrator) State() State {
	return o.state
}

// Episode returns the episode of the latest resolution
func (o *Orchestrator) Episode() providers.EpisodeRef {
	return o.episode
}

// Provider returns the provider of the latest resolution
func (o *Orchestrator) Provider() providers.Kind {
	return o.provider
}

// CurrentSourceURL returns the URL to play
func (o *Orchestrator) CurrentSourceURL() string {
	return o.currentURL
}

// Descriptor returns a copy of the current descriptor, or nil
func (o *Orchestrator) Descriptor() *providers.StreamDescriptor {
	return o.descriptor.Clone()
}

// Snapshot returns a copy of the orchestrator state
func (o *Orchestrator) Snapshot() Snapshot {
	return Snapshot{
		State:            o.state,
		Generation:       o.generation,
		Provider:         o.provider,
		Episode:          o.episode,
		Descriptor:       o.descriptor.Clone(),
		Stale:            o.stale,
		Qualities:        append([]manifest.QualityVariant(nil), o.qualities...),
		CurrentSourceURL: o.currentURL,
		CurrentQuality:   o.currentQuality,
		Err:              o.err,
	}
}

func (o *Orchestrator) clearDescriptor() {
	o.descriptor = nil
	o.stale = false
	o.qualities = nil
	o.currentURL = ""
	o.currentQuality = ""
}
