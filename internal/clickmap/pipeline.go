package clickmap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/mailchimp-clickmap/internal/mailchimp"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/logger"
)

// Source provides campaign data. *mailchimp.Client satisfies this.
type Source interface {
	ListCampaigns(ctx context.Context, since time.Time, filter mailchimp.CampaignFilter) ([]mailchimp.Campaign, error)
	GetCampaignContent(ctx context.Context, campaignID string) (string, error)
	GetClickDetails(ctx context.Context, campaignID string) ([]mailchimp.ClickDetail, error)
}

// ContentCache caches campaign HTML between runs. Implementations must
// treat misses as the common case; the pipeline works without a cache.
type ContentCache interface {
	GetContent(ctx context.Context, campaignID string) (string, bool)
	SetContent(ctx context.Context, campaignID, html string)
}

// RunOptions selects which campaigns a run covers.
type RunOptions struct {
	// Lookback bounds since_send_time; zero means the config default
	// applied by the caller.
	Lookback time.Duration
	// NameFilter keeps only campaigns whose title contains the substring.
	NameFilter string
}

// RunResult is the terminal artifact of one pipeline run.
type RunResult struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
	NameFilter         string    `json:"name_filter,omitempty"`
	CampaignsListed    int       `json:"campaigns_listed"`
	CampaignsProcessed int       `json:"campaigns_processed"`
	CampaignsSkipped   int       `json:"campaigns_skipped"`
	Records            []Record  `json:"records"`
}

// Pipeline orchestrates one click-map build: list campaigns, then per
// campaign fetch HTML and click details and join them. Execution is
// sequential per campaign; intermediate structures are campaign-scoped
// and rebuilt each iteration, so there is no shared mutable state.
type Pipeline struct {
	source  Source
	builder *Builder
	cache   ContentCache
}

// NewPipeline creates a Pipeline. cache may be nil.
func NewPipeline(source Source, builder *Builder, cache ContentCache) *Pipeline {
	return &Pipeline{
		source:  source,
		builder: builder,
		cache:   cache,
	}
}

// Run builds click maps for every campaign in the lookback window.
// Individual campaign failures degrade gracefully: a campaign with no
// fetchable or empty HTML is skipped and logged, and a failed click
// report yields zero-metric records from the HTML alone. Run only
// errors when the campaign list itself cannot be fetched at all.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		NameFilter: opts.NameFilter,
	}

	since := time.Now().Add(-opts.Lookback)
	campaigns, err := p.source.ListCampaigns(ctx, since, mailchimp.TitleContains(opts.NameFilter))
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}
	result.CampaignsListed = len(campaigns)

	logger.Info("clickmap: run started",
		"run_id", result.RunID,
		"campaigns", len(campaigns),
		"name_filter", opts.NameFilter)

	for _, campaign := range campaigns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records := p.processCampaign(ctx, campaign)
		if records == nil {
			result.CampaignsSkipped++
			continue
		}
		result.CampaignsProcessed++
		result.Records = append(result.Records, records...)
	}

	result.CompletedAt = time.Now().UTC()
	logger.Info("clickmap: run completed",
		"run_id", result.RunID,
		"processed", result.CampaignsProcessed,
		"skipped", result.CampaignsSkipped,
		"records", len(result.Records))

	return result, nil
}

// processCampaign builds one campaign's records. A nil return means the
// campaign was skipped (no content); an empty-but-processed campaign
// returns an empty slice.
func (p *Pipeline) processCampaign(ctx context.Context, campaign mailchimp.Campaign) []Record {
	logger.Info("clickmap: processing campaign",
		"campaign_id", campaign.ID, "campaign_name", campaign.Title())

	html, cached := p.cachedContent(ctx, campaign.ID)
	if !cached {
		var err error
		html, err = p.source.GetCampaignContent(ctx, campaign.ID)
		if err != nil {
			logger.Warn("clickmap: skipping campaign, content fetch failed",
				"campaign_id", campaign.ID, "error", err.Error())
			return nil
		}
		if html != "" && p.cache != nil {
			p.cache.SetContent(ctx, campaign.ID, html)
		}
	}
	if html == "" {
		logger.Warn("clickmap: skipping campaign, empty content",
			"campaign_id", campaign.ID)
		return nil
	}

	// A failed click report is not fatal: positions and urls still come
	// out of the HTML, with zeroed metrics.
	details, err := p.source.GetClickDetails(ctx, campaign.ID)
	if err != nil {
		logger.Warn("clickmap: click details unavailable, emitting zero metrics",
			"campaign_id", campaign.ID, "error", err.Error())
		details = nil
	}

	records := p.builder.BuildForCampaign(campaign, html, details)
	if records == nil {
		records = []Record{}
	}
	return records
}

func (p *Pipeline) cachedContent(ctx context.Context, campaignID string) (string, bool) {
	if p.cache == nil {
		return "", false
	}
	return p.cache.GetContent(ctx, campaignID)
}
