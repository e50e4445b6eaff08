package providers

import (
	"errors"
	"fmt"
)

// Reason classifies a resolution failure
type Reason string

const (
	ReasonNoCrossReference  Reason = "no_cross_reference"
	ReasonNoEpisodeMatch    Reason = "no_episode_match"
	ReasonNoSources         Reason = "no_sources"
	ReasonMissingIdentifier Reason = "missing_identifier"
	ReasonTransport         Reason = "transport"
)

// Sentinel errors, one per Reason, for use with errors.Is
var (
	ErrNoCrossReference  = errors.New("series has no cross-reference id")
	ErrNoEpisodeMatch    = errors.New("no matching episode")
	ErrNoSources         = errors.New("no playable sources")
	ErrMissingIdentifier = errors.New("missing provider identifier")
	ErrTransport         = errors.New("provider request failed")
)

var reasonErrors = map[Reason]error{
	ReasonNoCrossReference:  ErrNoCrossReference,
	ReasonNoEpisodeMatch:    ErrNoEpisodeMatch,
	ReasonNoSources:         ErrNoSources,
	ReasonMissingIdentifier: ErrMissingIdentifier,
	ReasonTransport:         ErrTransport,
}

// ResolutionError is a provider-scoped failure to resolve an episode
type ResolutionError struct {
	Provider Kind
	Reason   Reason
	Err      error
}

// NewResolutionError creates a ResolutionError
func NewResolutionError(provider Kind, reason Reason, err error) *ResolutionError {
	return &ResolutionError{Provider: provider, Reason: reason, Err: err}
}

func (e *ResolutionError) Error() string {
	msg := e.Reason.String()
	if sentinel, ok := reasonErrors[e.Reason]; ok {
		msg = sentinel.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

// Unwrap exposes the underlying cause
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's Reason
func (e *ResolutionError) Is(target error) bool {
	sentinel, ok := reasonErrors[e.Reason]
	return ok && target == sentinel
}

// String returns the string representation of Reason
func (r Reason) String() string {
	return string(r)
}

// AsResolutionError converts err into a ResolutionError for provider,
// treating anything unclassified as a transport failure
func AsResolutionError(provider Kind, err error) *ResolutionError {
	if err == nil {
		return nil
	}
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}
	return NewResolutionError(provider, ReasonTransport, err)
}
