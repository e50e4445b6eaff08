// Package manifest turns HLS master playlists into a sorted quality ladder
package manifest

import (
	"bufio"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// AutoLabel is the label of the variant pointing at the master playlist itself
const AutoLabel = "auto"

const (
	streamInfTag  = "#EXT-X-STREAM-INF:"
	unknownLabel  = "unknown"
	bandwidthUnit = 1000
)

// QualityVariant is one selectable entry of the quality ladder
type QualityVariant struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label" yaml:"label"` // "auto", "<height>p" or "<kbps>k"
}

// ParseError is returned when a manifest cannot be parsed
type ParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse manifest %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse manifest %s: %s", e.URL, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Fallback returns the single-entry ladder used when a manifest cannot be read
func Fallback(manifestURL string) []QualityVariant {
	return []QualityVariant{{URL: manifestURL, Label: AutoLabel}}
}

// ParseVariants walks the lines of a master playlist and returns its variants
// plus the trailing "auto" entry, unsorted.
func ParseVariants(body, manifestURL string) ([]QualityVariant, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &ParseError{URL: manifestURL, Reason: "invalid manifest url", Err: err}
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		variants   []QualityVariant
		pending    string
		hasPending bool
		sawContent bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// #EXTM3U is optional; only stream-info lines and their URIs matter
		sawContent = true

		if strings.HasPrefix(line, streamInfTag) {
			pending = labelFor(parseAttributes(strings.TrimPrefix(line, streamInfTag)))
			hasPending = true
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		if !hasPending {
			continue
		}

		ref, err := url.Parse(line)
		if err != nil {
			return nil, &ParseError{URL: manifestURL, Reason: fmt.Sprintf("invalid variant uri %q", line), Err: err}
		}
		variants = append(variants, QualityVariant{
			URL:   base.ResolveReference(ref).String(),
			Label: pending,
		})
		hasPending = false
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{URL: manifestURL, Reason: "read failed", Err: err}
	}
	if !sawContent {
		return nil, &ParseError{URL: manifestURL, Reason: "empty manifest"}
	}

	variants = append(variants, QualityVariant{URL: manifestURL, Label: AutoLabel})
	return variants, nil
}

// SortVariants orders the ladder in place: auto first, numeric labels
// descending, then labels without a numeric value in encountered order.
func SortVariants(variants []QualityVariant) {
	sort.SliceStable(variants, func(i, j int) bool {
		ri, rj := rank(variants[i]), rank(variants[j])
		if ri != rj {
			return ri < rj
		}
		if ri == 1 {
			return numericValue(variants[i].Label) > numericValue(variants[j].Label)
		}
		return false
	})
}

// rank groups variants: 0 auto, 1 numeric, 2 everything else
func rank(v QualityVariant) int {
	if v.Label == AutoLabel {
		return 0
	}
	if _, ok := parseNumeric(v.Label); ok {
		return 1
	}
	return 2
}

func numericValue(label string) float64 {
	n, _ := parseNumeric(label)
	return n
}

// parseNumeric strips a trailing "p" or "k" and parses the rest
func parseNumeric(label string) (float64, bool) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(label), "p"), "k")
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// labelFor prefers the RESOLUTION height and falls back to BANDWIDTH in kbps
func labelFor(attrs map[string]string) string {
	if res, ok := attrs["RESOLUTION"]; ok {
		if _, height, found := strings.Cut(strings.ToLower(res), "x"); found {
			if h, err := strconv.Atoi(height); err == nil && h > 0 {
				return strconv.Itoa(h) + "p"
			}
		}
	}
	if bw, ok := attrs["BANDWIDTH"]; ok {
		if b, err := strconv.Atoi(bw); err == nil && b > 0 {
			return strconv.Itoa(b/bandwidthUnit) + "k"
		}
	}
	return unknownLabel
}

// parseAttributes splits an attribute list on commas outside quotes
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)

	var (
		current  strings.Builder
		inQuotes bool
	)
	flush := func() {
		key, value, ok := strings.Cut(current.String(), "=")
		if ok {
			attrs[strings.ToUpper(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
		}
		current.Reset()
	}

	for _, r := range list {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return attrs
}
