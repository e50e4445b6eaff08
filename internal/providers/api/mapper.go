package api

import (
	"sort"

	"github.com/justchokingaround/watchengine/internal/providers"
)

// ToSeriesDetails converts a SeriesResponse to providers.SeriesDetails.
// Episodes are sorted by number; entries without an id are skipped.
func ToSeriesDetails(sr SeriesResponse) *providers.SeriesDetails {
	details := &providers.SeriesDetails{
		ID:         sr.ID,
		Title:      sr.Title,
		CoverImage: sr.Image,
		CrossReference: providers.CrossReferenceIDs{
			AniListID: sr.AniListID,
			MALID:     sr.MALID,
		},
		Episodes: make([]providers.EpisodeSummary, 0, len(sr.Episodes)),
	}

	for _, ep := range sr.Episodes {
		if ep.ID == "" {
			continue
		}
		details.Episodes = append(details.Episodes, providers.EpisodeSummary{
			ID:     ep.ID,
			Number: ep.Number,
			Title:  ep.Title,
		})
	}

	sort.SliceStable(details.Episodes, func(i, j int) bool {
		return details.Episodes[i].Number < details.Episodes[j].Number
	})

	return details
}
