package models

import (
	"fmt"
	"time"
)

// Platform identifies the ad network a metric record came from.
type Platform string

const (
	PlatformGoogleAds Platform = "google_ads"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformLinkedIn  Platform = "linkedin"
)

// AllPlatforms lists every supported ad network.
var AllPlatforms = []Platform{
	PlatformGoogleAds,
	PlatformFacebook,
	PlatformInstagram,
	PlatformTikTok,
	PlatformLinkedIn,
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Granularity is the time bucket size of a metric record.
type Granularity string

const (
	GranularityHourly Granularity = "hourly"
	GranularityDaily  Granularity = "daily"
)

// ParseGranularity validates a record granularity. Empty defaults to daily.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityHourly:
		return GranularityHourly, nil
	case GranularityDaily, "":
		return GranularityDaily, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// GroupKey selects how records are bucketed for grouping queries.
type GroupKey string

const (
	GroupByDay      GroupKey = "day"
	GroupByWeek     GroupKey = "week"
	GroupByMonth    GroupKey = "month"
	GroupByCampaign GroupKey = "campaign"
	GroupByPlatform GroupKey = "platform"
)

// ParseGroupKey validates a grouping key. Empty defaults to day.
func ParseGroupKey(s string) (GroupKey, error) {
	switch GroupKey(s) {
	case GroupByDay, "":
		return GroupByDay, nil
	case GroupByWeek, GroupByMonth, GroupByCampaign, GroupByPlatform:
		return GroupKey(s), nil
	}
	return "", fmt.Errorf("unknown group key %q", s)
}

// MetricRecord is an immutable per-day (or per-hour) metric fact. At most one
// record exists per (campaign, date, granularity); the analytics core only
// ever reads these.
type MetricRecord struct {
	CampaignID  string      `json:"campaign_id"`
	Date        time.Time   `json:"date"`
	Platform    Platform    `json:"platform"`
	Granularity Granularity `json:"granularity"`

	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	Conversions int64 `json:"conversions"`

	Spend   float64 `json:"spend"`
	Revenue float64 `json:"revenue"`

	CTR  float64 `json:"ctr"`
	CPC  float64 `json:"cpc"`
	CPM  float64 `json:"cpm"`
	CPA  float64 `json:"cpa"`
	ROAS float64 `json:"roas"`
	ROI  float64 `json:"roi"`

	// QualityScore is platform-reported and not always present.
	QualityScore *float64 `json:"quality_score,omitempty"`

	// PlatformData carries platform-specific fields not otherwise modeled.
	PlatformData map[string]any `json:"platform_data,omitempty"`
}

// AggregatedMetrics is a derived summary over a set of metric records.
// An empty input set yields the zero value; averages are never NaN.
type AggregatedMetrics struct {
	TotalSpend       float64 `json:"total_spend"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalImpressions int64   `json:"total_impressions"`
	TotalClicks      int64   `json:"total_clicks"`
	TotalConversions int64   `json:"total_conversions"`

	AverageCPC  float64 `json:"average_cpc"`
	AverageCPM  float64 `json:"average_cpm"`
	AverageCPA  float64 `json:"average_cpa"`
	AverageCTR  float64 `json:"average_ctr"`
	AverageROAS float64 `json:"average_roas"`
	AverageROI  float64 `json:"average_roi"`
}

// PlatformStats is one row of a platform breakdown.
type PlatformStats struct {
	Platform Platform          `json:"platform"`
	Metrics  AggregatedMetrics `json:"metrics"`
	// Percentage is this platform's share of total spend.
	Percentage float64 `json:"percentage"`
}

// CampaignStats is one row of a campaign ranking.
type CampaignStats struct {
	CampaignID   string            `json:"campaign_id"`
	CampaignName string            `json:"campaign_name,omitempty"`
	Status       string            `json:"status,omitempty"`
	Metrics      AggregatedMetrics `json:"metrics"`
}

// TimeSeriesPoint is one bucket of a time series query.
type TimeSeriesPoint struct {
	Date    string            `json:"date"`
	Metrics AggregatedMetrics `json:"metrics"`
}

// IngestionEvent signals that new metric records arrived for a tenant.
// Emitted by the (external) ingestion pipeline when a platform sync completes.
type IngestionEvent struct {
	TenantID    string    `json:"tenant_id"`
	CampaignIDs []string  `json:"campaign_ids,omitempty"`
	Platform    Platform  `json:"platform,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Snapshot is the payload pushed to subscribed clients. Snapshots are
// idempotent: a newer one fully supersedes anything missed.
type Snapshot struct {
	Aggregated AggregatedMetrics `json:"aggregated"`
	Timestamp  time.Time         `json:"timestamp"`
	// Filtered holds just the subscription's requested metrics, when the
	// subscriber asked for a subset.
	Filtered map[string]float64 `json:"filtered,omitempty"`
}

// Alert is an operator- or pipeline-raised notification pushed to clients.
type Alert struct {
	TenantID    string         `json:"tenant_id"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	CampaignIDs []string       `json:"campaign_ids,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}
