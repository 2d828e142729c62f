package clickmap

import (
	"strings"

	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/logger"
)

// Builder joins a campaign's ordered, filtered links against its
// tracked-URL click metrics and emits one Record per surviving link.
type Builder struct {
	filter *Filter
}

// NewBuilder creates a Builder with the given link filter.
func NewBuilder(filter *Filter) *Builder {
	return &Builder{filter: filter}
}

// detailIndex maps normalized tracked URLs to their click detail.
// Duplicate normalized keys resolve last-write-wins (documented merge
// policy); keys preserves first-insertion order so the fuzzy fallback
// scan is deterministic.
type detailIndex struct {
	byKey map[string]mailchimp.ClickDetail
	keys  []string
}

func indexDetails(details []mailchimp.ClickDetail) *detailIndex {
	idx := &detailIndex{byKey: make(map[string]mailchimp.ClickDetail, len(details))}
	for _, detail := range details {
		key := Normalize(detail.URL).Key
		if _, exists := idx.byKey[key]; !exists {
			idx.keys = append(idx.keys, key)
		}
		idx.byKey[key] = detail
	}
	return idx
}

// match finds the click detail for a normalized link key: exact lookup
// first, then a substring fallback in either direction. Among fuzzy
// candidates the longest tracked key wins, with first-insertion order
// breaking length ties.
func (idx *detailIndex) match(linkKey string) (mailchimp.ClickDetail, bool) {
	if detail, ok := idx.byKey[linkKey]; ok {
		return detail, true
	}

	bestLen := -1
	var best mailchimp.ClickDetail
	for _, key := range idx.keys {
		if key == "" {
			continue
		}
		if strings.Contains(linkKey, key) || strings.Contains(key, linkKey) {
			if len(key) > bestLen {
				bestLen = len(key)
				best = idx.byKey[key]
			}
		}
	}
	if bestLen < 0 {
		return mailchimp.ClickDetail{}, false
	}
	return best, true
}

// BuildForCampaign builds the click map for one campaign from its HTML
// body and click-detail report. Links are deduplicated (first occurrence
// wins), merge-tag placeholders and filtered links dropped, and each
// surviving link emitted in appearance order with a contiguous 1-based
// position. Unmatched links get zero-filled metrics; a missing match is
// never an error.
func (b *Builder) BuildForCampaign(campaign mailchimp.Campaign, html string, details []mailchimp.ClickDetail) []Record {
	if html == "" {
		return nil
	}

	links := DedupeLinks(ExtractLinks(html))
	idx := indexDetails(details)

	var records []Record
	order := 0
	for _, link := range links {
		if b.filter.ShouldExclude(link.URL) {
			continue
		}
		order++

		record := Record{
			CampaignID:   campaign.ID,
			CampaignName: campaign.Title(),
			Order:        order,
			URL:          link.URL,
		}

		norm := Normalize(link.URL)
		if norm.Fallback {
			logger.Debug("clickmap: link url passed through unnormalized",
				"campaign_id", campaign.ID, "url", link.URL)
		}
		if detail, ok := idx.match(norm.Key); ok {
			record.TotalClicks = detail.TotalClicks
			record.UniqueClicks = detail.UniqueClicks
			record.ClickPercentage = detail.ClickPercentage
			record.UniqueClickPercentage = detail.UniqueClickPercentage
		}

		records = append(records, record)
	}

	return records
}
