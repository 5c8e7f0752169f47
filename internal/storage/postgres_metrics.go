package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// PostgresMetricStore implements MetricStore on a metric_records table.
type PostgresMetricStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMetricStore creates a Postgres-backed metric store.
func NewPostgresMetricStore(pool *pgxpool.Pool) *PostgresMetricStore {
	return &PostgresMetricStore{pool: pool}
}

func (s *PostgresMetricStore) FindRecords(ctx context.Context, tenantID string, f QueryFilter) ([]models.MetricRecord, error) {
	where, args := buildWhere(tenantID, f)

	query := `
		SELECT campaign_id, date, platform, granularity,
		       impressions, clicks, conversions, spend, revenue,
		       ctr, cpc, cpm, cpa, roas, roi, quality_score
		FROM metric_records
		WHERE ` + where

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []models.MetricRecord
	for rows.Next() {
		var r models.MetricRecord
		if err := rows.Scan(
			&r.CampaignID, &r.Date, &r.Platform, &r.Granularity,
			&r.Impressions, &r.Clicks, &r.Conversions, &r.Spend, &r.Revenue,
			&r.CTR, &r.CPC, &r.CPM, &r.CPA, &r.ROAS, &r.ROI, &r.QualityScore,
		); err != nil {
			return nil, fmt.Errorf("scan metric record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return records, nil
}

func (s *PostgresMetricStore) GroupSums(ctx context.Context, tenantID string, f QueryFilter, key models.GroupKey) ([]GroupSumRow, error) {
	expr, err := pgGroupExpr(key)
	if err != nil {
		return nil, err
	}

	where, args := buildWhere(tenantID, f)

	query := fmt.Sprintf(`
		SELECT %s AS bucket,
		       COALESCE(SUM(impressions), 0),
		       COALESCE(SUM(clicks), 0),
		       COALESCE(SUM(conversions), 0),
		       COALESCE(SUM(spend), 0),
		       COALESCE(SUM(revenue), 0)
		FROM metric_records
		WHERE %s
		GROUP BY bucket
		ORDER BY bucket`, expr, where)

	rows, err := s.pool.Query(ctx, query, args...)
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

// pgGroupExpr maps a group key to its SQL bucket expression.
// date_trunc('week', ...) is Monday-aligned in Postgres.
func pgGroupExpr(key models.GroupKey) (string, error) {
	switch key {
	case models.GroupByDay:
		return `to_char(date, 'YYYY-MM-DD')`, nil
	case models.GroupByWeek:
		return `to_char(date_trunc('week', date), 'YYYY-MM-DD')`, nil
	case models.GroupByMonth:
		return `to_char(date, 'YYYY-MM')`, nil
	case models.GroupByCampaign:
		return `campaign_id`, nil
	case models.GroupByPlatform:
		return `platform`, nil
	}
	return "", fmt.Errorf("unknown group key %q", key)
}

func buildWhere(tenantID string, f QueryFilter) (string, []any) {
	conds := []string{"tenant_id = $1", "date >= $2", "date <= $3"}
	args := []any{tenantID, f.From, f.To}

	if len(f.Platforms) > 0 {
		platforms := make([]string, len(f.Platforms))
		for i, p := range f.Platforms {
			platforms[i] = string(p)
		}
		args = append(args, platforms)
		conds = append(conds, fmt.Sprintf("platform = ANY($%d)", len(args)))
	}
	if len(f.CampaignIDs) > 0 {
		args = append(args, f.CampaignIDs)
		conds = append(conds, fmt.Sprintf("campaign_id = ANY($%d)", len(args)))
	}
	if f.Granularity != "" {
		args = append(args, string(f.Granularity))
		conds = append(conds, fmt.Sprintf("granularity = $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// PostgresCampaignRepo reads campaign metadata for enrichment.
type PostgresCampaignRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresCampaignRepo creates a Postgres-backed campaign metadata repo.
func NewPostgresCampaignRepo(pool *pgxpool.Pool) *PostgresCampaignRepo {
	return &PostgresCampaignRepo{pool: pool}
}

func (r *PostgresCampaignRepo) GetMeta(ctx context.Context, tenantID string, ids []string) (map[string]models.CampaignMeta, error) {
	if len(ids) == 0 {
		return map[string]models.CampaignMeta{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, status, platform
		FROM campaigns
		WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]models.CampaignMeta, len(ids))
	for rows.Next() {
		var m models.CampaignMeta
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Status, &m.Platform); err != nil {
			return nil, fmt.Errorf("scan campaign meta: %w", err)
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return out, nil
}
