package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailchimp-clickmap/internal/config"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/httpretry"
	"github.com/ignite/mailchimp-clickmap/internal/pkg/logger"
)

const (
	// campaignPageSize is the page size for the campaign list endpoint
	campaignPageSize = 100
	// clickDetailPageSize is the page size for the click-details report endpoint
	clickDetailPageSize = 1000
)

// CampaignFilter is an optional client-side predicate applied to each
// fetched campaign. A nil filter accepts every campaign.
type CampaignFilter func(Campaign) bool

// TitleContains returns a filter accepting campaigns whose title
// contains the given substring. An empty substring accepts everything.
func TitleContains(substr string) CampaignFilter {
	if substr == "" {
		return nil
	}
	return func(c Campaign) bool {
		return strings.Contains(c.Settings.Title, substr)
	}
}

// Client is a Mailchimp Marketing API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Mailchimp API client
func NewClient(cfg config.MailchimpConfig) *Client {
	return &Client{
		baseURL: cfg.ResolveBaseURL(),
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest makes an HTTP request to the Mailchimp API
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ListCampaigns fetches campaigns sent since the given time, paginating
// until the API-reported total is reached or a page comes back short.
// A failed page stops pagination for this call; campaigns collected so
// far are returned rather than discarded.
func (c *Client) ListCampaigns(ctx context.Context, since time.Time, filter CampaignFilter) ([]Campaign, error) {
	params := url.Values{}
	params.Set("since_send_time", since.Format("2006-01-02T15:04:05"))
	params.Set("count", strconv.Itoa(campaignPageSize))

	var campaigns []Campaign
	fetched := 0
	for offset := 0; ; offset += campaignPageSize {
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.doRequest(ctx, http.MethodGet, "/campaigns", params)
		if err != nil {
			logger.Warn("mailchimp: campaign page fetch failed, keeping partial results",
				"offset", offset, "error", err.Error())
			break
		}

		var page CampaignsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			logger.Warn("mailchimp: campaign page parse failed, keeping partial results",
				"offset", offset, "error", err.Error())
			break
		}

		fetched += len(page.Campaigns)
		for _, campaign := range page.Campaigns {
			if filter == nil || filter(campaign) {
				campaigns = append(campaigns, campaign)
			}
		}

		if fetched >= page.TotalItems || len(page.Campaigns) < campaignPageSize {
			break
		}
	}

	return campaigns, nil
}

// GetCampaignContent fetches a campaign's rendered HTML body
func (c *Client) GetCampaignContent(ctx context.Context, campaignID string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/campaigns/"+campaignID+"/content", nil)
	if err != nil {
		return "", fmt.Errorf("fetching campaign content: %w", err)
	}

	var response ContentResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("parsing campaign content: %w", err)
	}

	return response.HTML, nil
}

// GetClickDetails fetches every tracked-URL click row for a campaign,
// paginating the click report. A failed page stops pagination for this
// call; rows collected so far are returned rather than discarded.
func (c *Client) GetClickDetails(ctx context.Context, campaignID string) ([]ClickDetail, error) {
	path := "/reports/" + campaignID + "/click-details"
	params := url.Values{}
	params.Set("count", strconv.Itoa(clickDetailPageSize))

	var details []ClickDetail
	for offset := 0; ; offset += clickDetailPageSize {
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.doRequest(ctx, http.MethodGet, path, params)
		if err != nil {
			logger.Warn("mailchimp: click-detail page fetch failed, keeping partial results",
				"campaign_id", campaignID, "offset", offset, "error", err.Error())
			break
		}

		var page ClickDetailsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			logger.Warn("mailchimp: click-detail page parse failed, keeping partial results",
				"campaign_id", campaignID, "offset", offset, "error", err.Error())
			break
		}

		if len(page.URLsClicked) == 0 {
			break
		}
		details = append(details, page.URLsClicked...)

		if len(page.URLsClicked) < clickDetailPageSize {
			break
		}
	}

	return details, nil
}

// Ping hits the API health endpoint. Used by the service health check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/ping", nil)
	return err
}
