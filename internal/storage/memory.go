package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// InMemoryMetricStore implements MetricStore in process memory. Used in tests
// and as the degraded-mode fallback when no database is reachable.
type InMemoryMetricStore struct {
	mu      sync.RWMutex
	records map[string][]models.MetricRecord // tenant -> records
}

// NewInMemoryMetricStore creates an empty in-memory metric store.
func NewInMemoryMetricStore() *InMemoryMetricStore {
	return &InMemoryMetricStore{records: make(map[string][]models.MetricRecord)}
}

var _ MetricStore = (*InMemoryMetricStore)(nil)

// Add inserts records for a tenant.
func (s *InMemoryMetricStore) Add(tenantID string, records ...models.MetricRecord) {
	s.mu.Lock()
	s.records[tenantID] = append(s.records[tenantID], records...)
	s.mu.Unlock()
}

func (s *InMemoryMetricStore) FindRecords(_ context.Context, tenantID string, f QueryFilter) ([]models.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MetricRecord
	for _, r := range s.records[tenantID] {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryMetricStore) GroupSums(ctx context.Context, tenantID string, f QueryFilter, key models.GroupKey) ([]GroupSumRow, error) {
	records, err := s.FindRecords(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*GroupSumRow)
	for _, r := range records {
		bucket := models.BucketKey(r, key)
		row, ok := byKey[bucket]
		if !ok {
			row = &GroupSumRow{Key: bucket}
			byKey[bucket] = row
		}
		row.Impressions += r.Impressions
		row.Clicks += r.Clicks
		row.Conversions += r.Conversions
		row.Spend += r.Spend
		row.Revenue += r.Revenue
	}

	out := make([]GroupSumRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

func matches(r models.MetricRecord, f QueryFilter) bool {
	if r.Date.Before(f.From) || r.Date.After(f.To) {
		return false
	}
	if f.Granularity != "" && r.Granularity != f.Granularity {
		return false
	}
	if len(f.Platforms) > 0 && !containsPlatform(f.Platforms, r.Platform) {
		return false
	}
	if len(f.CampaignIDs) > 0 && !containsString(f.CampaignIDs, r.CampaignID) {
		return false
	}
	return true
}

func containsPlatform(set []models.Platform, p models.Platform) bool {
	for _, s := range set {
		if s == p {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// InMemoryCampaignRepo serves campaign metadata from memory.
type InMemoryCampaignRepo struct {
	mu    sync.RWMutex
	metas map[string]models.CampaignMeta // id -> meta
}

// NewInMemoryCampaignRepo creates an empty in-memory campaign repo.
func NewInMemoryCampaignRepo() *InMemoryCampaignRepo {
	return &InMemoryCampaignRepo{metas: make(map[string]models.CampaignMeta)}
}

var _ CampaignRepo = (*InMemoryCampaignRepo)(nil)

// Put stores campaign metadata.
func (r *InMemoryCampaignRepo) Put(meta models.CampaignMeta) {
	r.mu.Lock()
	r.metas[meta.ID] = meta
	r.mu.Unlock()
}

func (r *InMemoryCampaignRepo) GetMeta(_ context.Context, tenantID string, ids []string) (map[string]models.CampaignMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.CampaignMeta, len(ids))
	for _, id := range ids {
		if m, ok := r.metas[id]; ok && m.TenantID == tenantID {
			out[id] = m
		}
	}
	return out, nil
}
