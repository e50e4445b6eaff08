package catalog

// EpisodesResponse is the catalog's episode list keyed by a cross-reference id
type EpisodesResponse struct {
	Episodes []Episode `json:"episodes"`
}

// Episode is one catalog-local episode
type Episode struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// SourcesResponse is the catalog's source list for one episode
type SourcesResponse struct {
	Headers     map[string]string `json:"headers,omitempty"`
	Sources     []Source          `json:"sources"`
	Subtitles   []Subtitle        `json:"subtitles"`
	Intro       *Range            `json:"intro,omitempty"`
	Outro       *Range            `json:"outro,omitempty"`
	Download    []DownloadLink    `json:"download,omitempty"`
	DownloadURL string            `json:"downloadUrl,omitempty"`
}

// Source is one catalog source
type Source struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	IsM3U8  bool   `json:"isM3U8"`
	IsDub   bool   `json:"isDub"`
	Referer string `json:"referer,omitempty"`
}

// Subtitle is one catalog subtitle track
type Subtitle struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

// Range is an intro/outro interval in seconds
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// DownloadLink is one labelled download
type DownloadLink struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}
