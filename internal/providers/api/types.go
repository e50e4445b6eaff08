package api

// SeriesResponse represents the API's series detail response
type SeriesResponse struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Image         string       `json:"image"`
	Description   string       `json:"description"`
	Status        string       `json:"status"`
	TotalEpisodes int          `json:"totalEpisodes"`
	Episodes      []APIEpisode `json:"episodes"`
	AniListID     int          `json:"anilistId,omitempty"`
	MALID         int          `json:"malId,omitempty"`
}

// APIEpisode represents an episode in the API response
type APIEpisode struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
