package analytics

import (
	"fmt"
	"sort"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// Totals are the raw sums over a record set, before ratio derivation.
// Currency sums use Kahan compensation so long record sets don't silently
// drop cents.
type Totals struct {
	Spend       float64
	Revenue     float64
	Impressions int64
	Clicks      int64
	Conversions int64
}

type kahanSum struct {
	sum, c float64
}

func (k *kahanSum) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// Aggregate reduces any set of metric records into summary metrics.
// The input may be empty and need not be sorted; an empty set yields the
// zero value, never NaN.
func Aggregate(records []models.MetricRecord) models.AggregatedMetrics {
	return FromTotals(sumRecords(records))
}

func sumRecords(records []models.MetricRecord) Totals {
	var spend, revenue kahanSum
	var t Totals
	for _, r := range records {
		spend.add(r.Spend)
		revenue.add(r.Revenue)
		t.Impressions += r.Impressions
		t.Clicks += r.Clicks
		t.Conversions += r.Conversions
	}
	t.Spend = spend.sum
	t.Revenue = revenue.sum
	return t
}

// FromTotals derives the averaged ratios from raw sums. Every zero
// denominator resolves to 0.
func FromTotals(t Totals) models.AggregatedMetrics {
	m := models.AggregatedMetrics{
		TotalSpend:       t.Spend,
		TotalRevenue:     t.Revenue,
		TotalImpressions: t.Impressions,
		TotalClicks:      t.Clicks,
		TotalConversions: t.Conversions,
	}

	if t.Clicks > 0 {
		m.AverageCPC = t.Spend / float64(t.Clicks)
	}
	if t.Impressions > 0 {
		m.AverageCPM = t.Spend / float64(t.Impressions) * 1000
		m.AverageCTR = float64(t.Clicks) / float64(t.Impressions) * 100
	}
	if t.Conversions > 0 {
		m.AverageCPA = t.Spend / float64(t.Conversions)
	}
	if t.Spend > 0 {
		m.AverageROAS = t.Revenue / t.Spend
		m.AverageROI = (t.Revenue - t.Spend) / t.Spend * 100
	}

	return m
}

// GroupBy buckets records by the given key. Day keys are the literal date,
// week keys the Monday-aligned week start, month keys "YYYY-MM".
func GroupBy(records []models.MetricRecord, key models.GroupKey) map[string][]models.MetricRecord {
	out := make(map[string][]models.MetricRecord)
	for _, r := range records {
		bucket := models.BucketKey(r, key)
		out[bucket] = append(out[bucket], r)
	}
	return out
}

// PlatformBreakdown aggregates per platform and attributes each platform its
// share of total spend. With zero total spend every percentage is 0.
func PlatformBreakdown(records []models.MetricRecord) []models.PlatformStats {
	groups := GroupBy(records, models.GroupByPlatform)

	platforms := make([]string, 0, len(groups))
	for p := range groups {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var totalSpend kahanSum
	rows := make([]models.PlatformStats, 0, len(platforms))
	for _, p := range platforms {
		m := Aggregate(groups[p])
		totalSpend.add(m.TotalSpend)
		rows = append(rows, models.PlatformStats{
			Platform: models.Platform(p),
			Metrics:  m,
		})
	}

	if totalSpend.sum > 0 {
		for i := range rows {
			rows[i].Percentage = rows[i].Metrics.TotalSpend / totalSpend.sum * 100
		}
	}

	return rows
}

// TopCampaigns aggregates per campaign and returns up to limit campaigns
// ranked descending by rankMetric. Ties break by campaign ID ascending so
// the ordering is deterministic. A negative limit is a programmer error.
func TopCampaigns(records []models.MetricRecord, rankMetric models.MetricField, limit int) ([]models.CampaignStats, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative limit %d", limit)
	}

	groups := GroupBy(records, models.GroupByCampaign)

	rows := make([]models.CampaignStats, 0, len(groups))
	for id, recs := range groups {
		rows = append(rows, models.CampaignStats{
			CampaignID: id,
			Metrics:    Aggregate(recs),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		vi := rankMetric.ValueOf(rows[i].Metrics)
		vj := rankMetric.ValueOf(rows[j].Metrics)
		if vi != vj {
			return vi > vj
		}
		return rows[i].CampaignID < rows[j].CampaignID
	})

	if limit < len(rows) {
		rows = rows[:limit]
	}

	return rows, nil
}
