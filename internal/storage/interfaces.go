package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// ErrUnavailable marks a retryable store failure. Callers surface it to
// clients as an explicit retryable error rather than an empty result.
var ErrUnavailable = errors.New("metric store unavailable")

// QueryFilter bounds a metric query. Validation happens at the boundary so
// malformed ranges and unknown platforms never reach the aggregation engine.
type QueryFilter struct {
	From        time.Time
	To          time.Time
	Platforms   []models.Platform
	CampaignIDs []string
	Granularity models.Granularity
}

// Validate rejects malformed filters.
func (f QueryFilter) Validate() error {
	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("date range is required")
	}
	if f.To.Before(f.From) {
		return fmt.Errorf("invalid date range: end %s before start %s",
			f.To.Format("2006-01-02"), f.From.Format("2006-01-02"))
	}
	for _, p := range f.Platforms {
		if _, err := models.ParsePlatform(string(p)); err != nil {
			return err
		}
	}
	if f.Granularity != "" {
		if _, err := models.ParseGranularity(string(f.Granularity)); err != nil {
			return err
		}
	}
	return nil
}

// GroupSumRow is one pre-aggregated row returned by GroupSums.
type GroupSumRow struct {
	Key         string
	Impressions int64
	Clicks      int64
	Conversions int64
	Spend       float64
	Revenue     float64
}

// MetricStore is the read contract over immutable metric facts. Any
// relational or columnar store can back it.
type MetricStore interface {
	// FindRecords returns every record matching the filter, unordered.
	FindRecords(ctx context.Context, tenantID string, f QueryFilter) ([]models.MetricRecord, error)

	// GroupSums returns per-bucket sums without materializing records,
	// used for breakdowns and time series at scale.
	GroupSums(ctx context.Context, tenantID string, f QueryFilter, key models.GroupKey) ([]GroupSumRow, error)
}

// CampaignRepo provides read-only campaign metadata for enrichment.
type CampaignRepo interface {
	GetMeta(ctx context.Context, tenantID string, ids []string) (map[string]models.CampaignMeta, error)
}
