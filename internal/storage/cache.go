package storage

import (
	"context"
	"time"

	"github.com/ignite/mailchimp-clickmap/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ContentCache caches campaign HTML bodies in Redis so repeated runs
// (different name filters, re-exports) don't refetch unchanged content.
// Sent campaigns are immutable upstream, so a TTL-bounded cache is safe.
type ContentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContentCache creates a ContentCache. ttl <= 0 disables expiry.
func NewContentCache(client *redis.Client, ttl time.Duration) *ContentCache {
	return &ContentCache{client: client, ttl: ttl}
}

func contentKey(campaignID string) string {
	return "clickmap:content:" + campaignID
}

// GetContent returns the cached HTML for a campaign. Cache errors are
// treated as misses; the pipeline falls back to the API.
func (c *ContentCache) GetContent(ctx context.Context, campaignID string) (string, bool) {
	html, err := c.client.Get(ctx, contentKey(campaignID)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		logger.Warn("cache: content lookup failed, treating as miss",
			"campaign_id", campaignID, "error", err.Error())
		return "", false
	}
	return html, true
}

// SetContent caches a campaign's HTML. Failures are logged and ignored;
// the cache is an optimization, never a dependency.
func (c *ContentCache) SetContent(ctx context.Context, campaignID, html string) {
	if err := c.client.Set(ctx, contentKey(campaignID), html, c.ttl).Err(); err != nil {
		logger.Warn("cache: content store failed",
			"campaign_id", campaignID, "error", err.Error())
	}
}
