package mailchimp

// Campaign is one sent campaign as reported by the Mailchimp API
type Campaign struct {
	ID            string           `json:"id"`
	WebID         int64            `json:"web_id"`
	Type          string           `json:"type"`
	Status        string           `json:"status"`
	EmailsSent    int64            `json:"emails_sent"`
	SendTime      string           `json:"send_time"`
	ArchiveURL    string           `json:"archive_url"`
	Settings      CampaignSettings `json:"settings"`
	ReportSummary ReportSummary    `json:"report_summary"`
}

// CampaignSettings holds the campaign's display settings
type CampaignSettings struct {
	Title       string `json:"title"`
	SubjectLine string `json:"subject_line"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

// Title returns the campaign's display name, defaulting to "N/A"
// when the API reports no title.
func (c Campaign) Title() string {
	if c.Settings.Title == "" {
		return "N/A"
	}
	return c.Settings.Title
}

// ReportSummary holds the campaign-level aggregate counters
type ReportSummary struct {
	Opens            int64   `json:"opens"`
	UniqueOpens      int64   `json:"unique_opens"`
	OpenRate         float64 `json:"open_rate"`
	Clicks           int64   `json:"clicks"`
	SubscriberClicks int64   `json:"subscriber_clicks"`
	ClickRate        float64 `json:"click_rate"`
}

// CampaignsResponse is the response from GET /campaigns
type CampaignsResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	TotalItems int        `json:"total_items"`
}

// ContentResponse is the response from GET /campaigns/{id}/content
type ContentResponse struct {
	HTML      string `json:"html"`
	PlainText string `json:"plain_text"`
}

// ClickDetail is one tracked URL's aggregate click metrics from the
// click report. Percentages are opaque pass-through values; the API's
// scale is never recomputed.
type ClickDetail struct {
	ID                    string  `json:"id"`
	CampaignID            string  `json:"campaign_id"`
	URL                   string  `json:"url"`
	TotalClicks           int64   `json:"total_clicks"`
	UniqueClicks          int64   `json:"unique_clicks"`
	ClickPercentage       float64 `json:"click_percentage"`
	UniqueClickPercentage float64 `json:"unique_click_percentage"`
	LastClick             string  `json:"last_click"`
}

// ClickDetailsResponse is the response from GET /reports/{id}/click-details
type ClickDetailsResponse struct {
	URLsClicked []ClickDetail `json:"urls_clicked"`
	CampaignID  string        `json:"campaign_id"`
	TotalItems  int           `json:"total_items"`
}
