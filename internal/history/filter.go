package history

import "github.com/sahilm/fuzzy"

// titles adapts records to fuzzy.Source
type titles []Record

func (t titles) String(i int) string { return t[i].SeriesTitle }
func (t titles) Len() int            { return len(t) }

// Filter returns the records whose series title fuzzy-matches query, best
// match first. An empty query returns records unchanged.
func Filter(records []Record, query string) []Record {
	if query == "" {
		return records
	}

	matches := fuzzy.FindFrom(query, titles(records))
	out := make([]Record, len(matches))
	for i, match := range matches {
		out[i] = records[match.Index]
	}
	return out
}
