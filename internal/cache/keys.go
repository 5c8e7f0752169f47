package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

const keyPrefix = "analytics"

// TenantPrefix is the invalidation prefix for everything cached for a tenant.
func TenantPrefix(tenantID string) string {
	return keyPrefix + ":" + tenantID + ":"
}

// QueryKey builds a deterministic cache key for an operation over a query
// filter. Equivalent filters produce the same key regardless of how the
// caller ordered its platform and campaign sets; date bounds are canonicalized
// to RFC3339 UTC at full precision.
func QueryKey(op, tenantID string, f storage.QueryFilter) string {
	parts := []string{
		op,
		canonicalTime(f.From),
		canonicalTime(f.To),
		canonicalSet(platformStrings(f.Platforms)),
		canonicalSet(f.CampaignIDs),
		string(f.Granularity),
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return TenantPrefix(tenantID) + op + ":" + hex.EncodeToString(sum[:])
}

// SeriesKey builds the cache key for time-series and trend queries, which
// additionally depend on the grouping bucket and selected metric.
func SeriesKey(op, tenantID string, f storage.QueryFilter, group models.GroupKey, metric models.MetricField) string {
	parts := []string{
		op,
		canonicalTime(f.From),
		canonicalTime(f.To),
		canonicalSet(platformStrings(f.Platforms)),
		canonicalSet(f.CampaignIDs),
		string(f.Granularity),
		string(group),
		string(metric),
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return TenantPrefix(tenantID) + op + ":" + hex.EncodeToString(sum[:])
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func canonicalSet(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func platformStrings(platforms []models.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}
