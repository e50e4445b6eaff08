package playback

import (
	"fmt"
	"strconv"

	"github.com/justchokingaround/watchengine/internal/providers"
)

// RouteWatch is the router destination of a watch session
const RouteWatch = "watch"

// Router params of RouteWatch
const (
	ParamSeriesID  = "series_id"
	ParamEpisodeID = "episode_id"
	ParamEpisode   = "episode"
	ParamLanguage  = "language"
	ParamProvider  = "provider"
	ParamResume    = "resume"
	ParamAutomatic = "automatic"
	ParamMode      = "mode"
)

// WatchParams is the typed form of the RouteWatch params
type WatchParams struct {
	Episode   providers.EpisodeRef
	Provider  providers.Kind
	Mode      PresentationMode
	Resume    *float64 // nil lets the session consult history
	Automatic bool
}

// Encode returns the router params
func (w WatchParams) Encode() map[string]string {
	params := map[string]string{
		ParamSeriesID:  w.Episode.SeriesID,
		ParamEpisodeID: w.Episode.EpisodeID,
		ParamEpisode:   strconv.Itoa(w.Episode.Number),
		ParamLanguage:  string(w.Episode.Language),
		ParamProvider:  string(w.Provider),
		ParamMode:      string(w.Mode),
		ParamAutomatic: strconv.FormatBool(w.Automatic),
	}
	if w.Resume != nil {
		params[ParamResume] = strconv.FormatFloat(*w.Resume, 'f', -1, 64)
	}
	return params
}

// ParseWatchParams parses router params produced by Encode
func ParseWatchParams(params map[string]string) (WatchParams, error) {
	var w WatchParams

	w.Episode.SeriesID = params[ParamSeriesID]
	w.Episode.EpisodeID = params[ParamEpisodeID]
	if w.Episode.EpisodeID == "" {
		return w, fmt.Errorf("missing %s", ParamEpisodeID)
	}

	if s := params[ParamEpisode]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return w, fmt.Errorf("invalid %s %q: %w", ParamEpisode, s, err)
		}
		w.Episode.Number = n
	}

	if s := params[ParamLanguage]; s != "" {
		lang, err := providers.ParseLanguageMode(s)
		if err != nil {
			return w, err
		}
		w.Episode.Language = lang
	}

	if s := params[ParamProvider]; s != "" {
		kind, err := providers.ParseKind(s)
		if err != nil {
			return w, err
		}
		w.Provider = kind
	}

	if s := params[ParamMode]; s != "" {
		mode, err := ParsePresentationMode(s)
		if err != nil {
			return w, err
		}
		w.Mode = mode
	}

	if s := params[ParamResume]; s != "" {
		resume, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return w, fmt.Errorf("invalid %s %q: %w", ParamResume, s, err)
		}
		w.Resume = &resume
	}

	if s := params[ParamAutomatic]; s != "" {
		automatic, err := strconv.ParseBool(s)
		if err != nil {
			return w, fmt.Errorf("invalid %s %q: %w", ParamAutomatic, s, err)
		}
		w.Automatic = automatic
	}

	return w, nil
}
