package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/cache"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

// Notifier propagates ingestion events to the realtime layer. Implemented by
// the fan-out hub; nil disables propagation.
type Notifier interface {
	PublishIngestion(ctx context.Context, ev models.IngestionEvent) error
}

// snapshotWindow is the rolling date range a room snapshot covers.
const snapshotWindow = 7 * 24 * time.Hour

// Service answers analytics queries by combining the metric store, the
// aggregate cache and campaign metadata enrichment.
type Service struct {
	store     storage.MetricStore
	campaigns storage.CampaignRepo
	cache     *cache.Cache
	notifier  Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService creates an analytics service.
func NewService(store storage.MetricStore, campaigns storage.CampaignRepo, c *cache.Cache, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		campaigns: campaigns,
		cache:     c,
		logger:    logger,
		metrics:   m,
	}
}

// SetNotifier wires the realtime layer in after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Summary returns the aggregate over every record matching the filter.
func (s *Service) Summary(ctx context.Context, tenantID string, f storage.QueryFilter) (models.AggregatedMetrics, error) {
	if err := f.Validate(); err != nil {
		return models.AggregatedMetrics{}, err
	}

	key := cache.QueryKey("summary", tenantID, f)
	return timed(s, "summary", func() (models.AggregatedMetrics, error) {
		return cache.GetOrCompute(ctx, s.cache, key, s.cache.TTL(), func(ctx context.Context) (models.AggregatedMetrics, error) {
			records, err := s.store.FindRecords(ctx, tenantID, f)
			if err != nil {
				return models.AggregatedMetrics{}, err
			}
			return Aggregate(records), nil
		})
	})
}

// PlatformBreakdown returns per-platform aggregates with each platform's
// share of total spend.
func (s *Service) PlatformBreakdown(ctx context.Context, tenantID string, f storage.QueryFilter) ([]models.PlatformStats, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	key := cache.QueryKey("platforms", tenantID, f)
	return timed(s, "platforms", func() ([]models.PlatformStats, error) {
		return cache.GetOrCompute(ctx, s.cache, key, s.cache.TTL(), func(ctx context.Context) ([]models.PlatformStats, error) {
			records, err := s.store.FindRecords(ctx, tenantID, f)
			if err != nil {
				return nil, err
			}
			return PlatformBreakdown(records), nil
		})
	})
}

// TopCampaigns returns up to limit campaigns ranked by the given metric,
// enriched with campaign names and statuses.
func (s *Service) TopCampaigns(ctx context.Context, tenantID string, f storage.QueryFilter, rankMetric models.MetricField, limit int) ([]models.CampaignStats, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := models.ParseMetricField(string(rankMetric)); err != nil {
		return nil, err
	}

	key := cache.SeriesKey(fmt.Sprintf("top_campaigns:%d", limit), tenantID, f, models.GroupByCampaign, rankMetric)
	return timed(s, "top_campaigns", func() ([]models.CampaignStats, error) {
		return cache.GetOrCompute(ctx, s.cache, key, s.cache.TTL(), func(ctx context.Context) ([]models.CampaignStats, error) {
			records, err := s.store.FindRecords(ctx, tenantID, f)
			if err != nil {
				return nil, err
			}
			rows, err := TopCampaigns(records, rankMetric, limit)
			if err != nil {
				return nil, err
			}
			s.enrich(ctx, tenantID, rows)
			return rows, nil
		})
	})
}

// TimeSeries returns per-bucket aggregates over the filter range, ordered by
// bucket. Buckets come from the store's pre-aggregated sums rather than
// materialized records.
func (s *Service) TimeSeries(ctx context.Context, tenantID string, f storage.QueryFilter, group models.GroupKey) ([]models.TimeSeriesPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := models.ParseGroupKey(string(group)); err != nil {
		return nil, err
	}

	key := cache.SeriesKey("timeseries", tenantID, f, group, "")
	return timed(s, "timeseries", func() ([]models.TimeSeriesPoint, error) {
		return cache.GetOrCompute(ctx, s.cache, key, s.cache.TTL(), func(ctx context.Context) ([]models.TimeSeriesPoint, error) {
			rows, err := s.store.GroupSums(ctx, tenantID, f, group)
			if err != nil {
				return nil, err
			}
			points := make([]models.TimeSeriesPoint, len(rows))
			for i, row := range rows {
				points[i] = models.TimeSeriesPoint{
					Date: row.Key,
					Metrics: FromTotals(Totals{
						Spend:       row.Spend,
						Revenue:     row.Revenue,
						Impressions: row.Impressions,
						Clicks:      row.Clicks,
						Conversions: row.Conversions,
					}),
				}
			}
			return points, nil
		})
	})
}

// Trend analyzes the selected metric's time series over the filter range.
func (s *Service) Trend(ctx context.Context, tenantID string, f storage.QueryFilter, group models.GroupKey, metric models.MetricField) (models.TrendResult, error) {
	if _, err := models.ParseMetricField(string(metric)); err != nil {
		return models.TrendResult{}, err
	}

	points, err := s.TimeSeries(ctx, tenantID, f, group)
	if err != nil {
		return models.TrendResult{}, err
	}

	series := make([]models.SeriesPoint, len(points))
	for i, p := range points {
		series[i] = models.SeriesPoint{Date: p.Date, Value: metric.ValueOf(p.Metrics)}
	}

	return AnalyzeTrend(series), nil
}

// Snapshot computes the current aggregate for a room's subscription scope.
// It goes through the cache, so an ingestion-triggered invalidation makes the
// next push recompute.
func (s *Service) Snapshot(ctx context.Context, tenantID string, campaignIDs []string) (models.Snapshot, error) {
	now := time.Now().UTC()
	f := storage.QueryFilter{
		From:        now.Add(-snapshotWindow),
		To:          now.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond),
		CampaignIDs: campaignIDs,
	}

	aggregated, err := s.Summary(ctx, tenantID, f)
	if err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{Aggregated: aggregated, Timestamp: now}, nil
}

// HandleIngestion reacts to an ingestion-complete event: the tenant's cached
// aggregates are invalidated, then the event is relayed to the realtime
// layer. Relay failure is logged and swallowed; the next periodic tick
// covers a missed push.
func (s *Service) HandleIngestion(ctx context.Context, ev models.IngestionEvent) error {
	if ev.TenantID == "" {
		return fmt.Errorf("ingestion event missing tenant id")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	s.cache.InvalidateTenant(ctx, ev.TenantID)

	if s.notifier != nil {
		if err := s.notifier.PublishIngestion(ctx, ev); err != nil {
			s.logger.Warn("ingestion broadcast failed",
				zap.String("tenant_id", ev.TenantID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("ingestion processed",
		zap.String("tenant_id", ev.TenantID),
		zap.Int("campaigns", len(ev.CampaignIDs)),
		zap.String("platform", string(ev.Platform)),
	)

	return nil
}

// enrich fills campaign names and statuses from metadata. Lookup failure
// leaves rows bare rather than failing the query.
func (s *Service) enrich(ctx context.Context, tenantID string, rows []models.CampaignStats) {
	if s.campaigns == nil || len(rows) == 0 {
		return
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CampaignID
	}

	metas, err := s.campaigns.GetMeta(ctx, tenantID, ids)
	if err != nil {
		s.logger.Warn("campaign metadata lookup failed", zap.Error(err))
		return
	}

	for i := range rows {
		if m, ok := metas[rows[i].CampaignID]; ok {
			rows[i].CampaignName = m.Name
			rows[i].Status = m.Status
		}
	}
}

// timed wraps an operation with query metrics.
func timed[T any](s *Service, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	if s.metrics != nil {
		if err != nil {
			s.metrics.RecordQueryError(operation)
		} else {
			s.metrics.RecordQuery(operation, time.Since(start))
		}
	}
	return out, err
}
