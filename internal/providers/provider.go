package providers

import (
	"context"
	"fmt"
	"strings"
)

// Adapter resolves an episode into a normalized StreamDescriptor.
// There is exactly one Adapter per Kind.
type Adapter interface {
	Kind() Kind
	Name() string
	Resolve(ctx context.Context, req ResolveRequest) (*StreamDescriptor, error)
}

// Kind tags the closed set of provider variants
type Kind string

const (
	KindDirectManifest   Kind = "direct"
	KindSecondaryCatalog Kind = "catalog"
	KindThirdPartyEmbed  Kind = "embed"
)

// Kinds lists every provider kind in display order
var Kinds = []Kind{KindDirectManifest, KindSecondaryCatalog, KindThirdPartyEmbed}

// ParseKind parses a provider kind string
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// LanguageMode selects subtitled or dubbed audio
type LanguageMode string

const (
	LanguageSub LanguageMode = "sub"
	LanguageDub LanguageMode = "dub"
)

// ParseLanguageMode parses "sub" or "dub"
func ParseLanguageMode(s string) (LanguageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sub":
		return LanguageSub, nil
	case "dub":
		return LanguageDub, nil
	default:
		return "", fmt.Errorf("invalid language mode %q: must be sub or dub", s)
	}
}

// EpisodeRef identifies the episode of a watch session.
// It is replaced as a whole on navigation or language change.
type EpisodeRef struct {
	EpisodeID string       `json:"episode_id"`
	SeriesID  string       `json:"series_id,omitempty"` // may be empty
	Number    int          `json:"number"`
	Language  LanguageMode `json:"language"`
}

// WithLanguage returns a copy of the ref with a different language
func (e EpisodeRef) WithLanguage(lang LanguageMode) EpisodeRef {
	e.Language = lang
	return e
}

// CrossReferenceIDs are the external catalog ids of a series.
// Zero means unknown.
type CrossReferenceIDs struct {
	AniListID int `json:"anilist_id,omitempty"`
	MALID     int `json:"mal_id,omitempty"`
}

// IsZero reports whether no id is known
func (c CrossReferenceIDs) IsZero() bool {
	return c.AniListID == 0 && c.MALID == 0
}

// ResolveRequest is the input of Adapter.Resolve
type ResolveRequest struct {
	Episode        EpisodeRef
	Language       LanguageMode
	ResumeAt       float64 // seconds, 0 = start
	CrossReference CrossReferenceIDs
}

// EffectiveLanguage returns the requested language, then the episode's, then sub
func (r ResolveRequest) EffectiveLanguage() LanguageMode {
	if r.Language != "" {
		return r.Language
	}
	if r.Episode.Language != "" {
		return r.Episode.Language
	}
	return LanguageSub
}

// StreamDescriptor is the normalized result of a successful resolution
type StreamDescriptor struct {
	Provider  Kind              `json:"provider" yaml:"provider"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Sources   []VariantSource   `json:"sources" yaml:"sources"`
	Subtitles []Subtitle        `json:"subtitles,omitempty" yaml:"subtitles,omitempty"`
	Intro     *TimeRange        `json:"intro,omitempty" yaml:"intro,omitempty"`
	Outro     *TimeRange        `json:"outro,omitempty" yaml:"outro,omitempty"`
	Download  DownloadTarget    `json:"download" yaml:"download"`
}

// Primary returns the first source
func (d *StreamDescriptor) Primary() (VariantSource, bool) {
	if d == nil || len(d.Sources) == 0 {
		return VariantSource{}, false
	}
	return d.Sources[0], true
}

// Clone returns a deep copy, so readers never share the owner's slices
func (d *StreamDescriptor) Clone() *StreamDescriptor {
	if d == nil {
		return nil
	}
	c := *d
	if d.Headers != nil {
		c.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			c.Headers[k] = v
		}
	}
	c.Sources = append([]VariantSource(nil), d.Sources...)
	c.Subtitles = append([]Subtitle(nil), d.Subtitles...)
	c.Download.Links = append([]DownloadLink(nil), d.Download.Links...)
	if d.Intro != nil {
		intro := *d.Intro
		c.Intro = &intro
	}
	if d.Outro != nil {
		outro := *d.Outro
		c.Outro = &outro
	}
	return &c
}

// VariantSource is one playable (or embeddable) source
type VariantSource struct {
	URL                string `json:"url" yaml:"url"`
	IsAdaptiveManifest bool   `json:"is_adaptive_manifest" yaml:"is_adaptive_manifest"`
	IsEmbeddedPlayer   bool   `json:"is_embedded_player" yaml:"is_embedded_player"`
	Label              string `json:"label,omitempty" yaml:"label,omitempty"` // provider's quality label
}

// Subtitle represents a subtitle track
type Subtitle struct {
	Language string `json:"language" yaml:"language"`
	URL      string `json:"url" yaml:"url"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty"` // srt, vtt, ass
}

// TimeRange is an interval in seconds
type TimeRange struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// DownloadTarget is either empty, a single URL, or a list of labelled links
type DownloadTarget struct {
	URL   string         `json:"url,omitempty" yaml:"url,omitempty"`
	Links []DownloadLink `json:"links,omitempty" yaml:"links,omitempty"`
}

// DownloadLink is one labelled download option
type DownloadLink struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label" yaml:"label"`
}

// IsZero reports whether no download is available
func (d DownloadTarget) IsZero() bool {
	return d.URL == "" && len(d.Links) == 0
}

// SeriesLookup fetches series details, including cross-reference ids
type SeriesLookup interface {
	GetSeriesDetails(ctx context.Context, seriesID string) (*SeriesDetails, error)
}

// SeriesDetails describes a series and its episodes
type SeriesDetails struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	CoverImage     string            `json:"cover_image,omitempty"`
	Episodes       []EpisodeSummary  `json:"episodes"`
	CrossReference CrossReferenceIDs `json:"cross_reference"`
}

// EpisodeSummary is one entry of a series episode list
type EpisodeSummary struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// FindEpisode returns the index of the episode with the given id or number
func (s *SeriesDetails) FindEpisode(episodeID string, number int) int {
	for i, ep := range s.Episodes {
		if episodeID != "" && ep.ID == episodeID {
			return i
		}
	}
	for i, ep := range s.Episodes {
		if ep.Number == number {
			return i
		}
	}
	return -1
}
