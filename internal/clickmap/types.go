// Package clickmap builds position-indexed click maps: it reconstructs
// the reading order of hyperlinks in a campaign's HTML body and joins
// that order against the campaign's tracked-URL click metrics.
package clickmap

// RawLink is a hyperlink target as it appears in a campaign's HTML
// body, before deduplication and filtering. Index is the zero-based
// appearance position in the markup.
type RawLink struct {
	URL   string
	Index int
}

// NormalizedURL is the canonical comparison key derived from a raw URL.
// Fallback is set when the raw URL could not be parsed and Key carries
// the input unchanged.
type NormalizedURL struct {
	Key      string
	Fallback bool
}

// Record is one output row of the click map: a surviving link with its
// 1-based post-filter position and its joined click metrics. URL is the
// original href text, never the normalized key. Metric fields are zero
// when no click detail matched.
type Record struct {
	CampaignID            string  `json:"campaign_id"`
	CampaignName          string  `json:"campaign_name"`
	Order                 int     `json:"order"`
	URL                   string  `json:"url"`
	TotalClicks           int64   `json:"total_clicks"`
	UniqueClicks          int64   `json:"unique_clicks"`
	ClickPercentage       float64 `json:"click_percentage"`
	UniqueClickPercentage float64 `json:"unique_click_percentage"`
}
