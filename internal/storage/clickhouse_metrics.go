package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// ClickHouseMetricStore implements MetricStore on a columnar metric_records
// table. Same read contract as Postgres; selected by config for tenants whose
// volume makes row-store scans impractical.
type ClickHouseMetricStore struct {
	conn driver.Conn
}

// NewClickHouseMetricStore creates a ClickHouse-backed metric store.
func NewClickHouseMetricStore(conn driver.Conn) *ClickHouseMetricStore {
	return &ClickHouseMetricStore{conn: conn}
}

var _ MetricStore = (*ClickHouseMetricStore)(nil)

func (s *ClickHouseMetricStore) FindRecords(ctx context.Context, tenantID string, f QueryFilter) ([]models.MetricRecord, error) {
	where, args := chWhere(tenantID, f)

	query := `
		SELECT campaign_id, date, platform, granularity,
		       impressions, clicks, conversions, spend, revenue,
		       ctr, cpc, cpm, cpa, roas, roi
		FROM metric_records
		WHERE ` + where

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []models.MetricRecord
	for rows.Next() {
		var (
			r        models.MetricRecord
			platform string
			gran     string
		)
		if err := rows.Scan(
			&r.CampaignID, &r.Date, &platform, &gran,
			&r.Impressions, &r.Clicks, &r.Conversions, &r.Spend, &r.Revenue,
			&r.CTR, &r.CPC, &r.CPM, &r.CPA, &r.ROAS, &r.ROI,
		); err != nil {
			return nil, fmt.Errorf("scan metric record: %w", err)
		}
		r.Platform = models.Platform(platform)
		r.Granularity = models.Granularity(gran)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return records, nil
}

func (s *ClickHouseMetricStore) GroupSums(ctx context.Context, tenantID string, f QueryFilter, key models.GroupKey) ([]GroupSumRow, error) {
	expr, err := chGroupExpr(key)
	if err != nil {
		return nil, err
	}

	where, args := chWhere(tenantID, f)

	query := fmt.Sprintf(`
		SELECT %s AS bucket,
		       sum(impressions), sum(clicks), sum(conversions),
		       sum(spend), sum(revenue)
		FROM metric_records
		WHERE %s
		GROUP BY bucket
		ORDER BY bucket`, expr, where)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []GroupSumRow
	for rows.Next() {
		var r GroupSumRow
		if err := rows.Scan(&r.Key, &r.Impressions, &r.Clicks, &r.Conversions, &r.Spend, &r.Revenue); err != nil {
			return nil, fmt.Errorf("scan group sum: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return out, nil
}

// chGroupExpr maps a group key to its ClickHouse bucket expression.
// toStartOfWeek(date, 1) is Monday-aligned.
func chGroupExpr(key models.GroupKey) (string, error) {
	switch key {
	case models.GroupByDay:
		return `formatDateTime(date, '%Y-%m-%d')`, nil
	case models.GroupByWeek:
		return `formatDateTime(toStartOfWeek(date, 1), '%Y-%m-%d')`, nil
	case models.GroupByMonth:
		return `formatDateTime(date, '%Y-%m')`, nil
	case models.GroupByCampaign:
		return `campaign_id`, nil
	case models.GroupByPlatform:
		return `platform`, nil
	}
	return "", fmt.Errorf("unknown group key %q", key)
}

func chWhere(tenantID string, f QueryFilter) (string, []any) {
	conds := []string{"tenant_id = ?", "date >= ?", "date <= ?"}
	args := []any{tenantID, f.From, f.To}

	if len(f.Platforms) > 0 {
		platforms := make([]string, len(f.Platforms))
		for i, p := range f.Platforms {
			platforms[i] = string(p)
		}
		conds = append(conds, "platform IN (?)")
		args = append(args, platforms)
	}
	if len(f.CampaignIDs) > 0 {
		conds = append(conds, "campaign_id IN (?)")
		args = append(args, f.CampaignIDs)
	}
	if f.Granularity != "" {
		conds = append(conds, "granularity = ?")
		args = append(args, string(f.Granularity))
	}

	return strings.Join(conds, " AND "), args
}
