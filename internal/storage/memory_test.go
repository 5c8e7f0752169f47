package storage

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-analytics/internal/models"
)

func record(campaign, date string, platform models.Platform, spend float64) models.MetricRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.MetricRecord{
		CampaignID:  campaign,
		Date:        d,
		Platform:    platform,
		Granularity: models.GranularityDaily,
		Spend:       spend,
	}
}

func rangeFilter(from, to string) QueryFilter {
	f, _ := time.Parse("2006-01-02", from)
	t, _ := time.Parse("2006-01-02", to)
	return QueryFilter{From: f, To: t.Add(24*time.Hour - time.Nanosecond)}
}

func TestQueryFilterValidate(t *testing.T) {
	valid := rangeFilter("2025-06-01", "2025-06-30")
	if err := valid.Validate(); err != nil {
		t.Errorf("valid filter rejected: %v", err)
	}

	if err := (QueryFilter{}).Validate(); err == nil {
		t.Error("zero range should be rejected")
	}

	inverted := valid
	inverted.From, inverted.To = inverted.To, inverted.From
	if err := inverted.Validate(); err == nil {
		t.Error("inverted range should be rejected")
	}

	badPlatform := valid
	badPlatform.Platforms = []models.Platform{"myspace"}
	if err := badPlatform.Validate(); err == nil {
		t.Error("unknown platform should be rejected")
	}

	badGranularity := valid
	badGranularity.Granularity = "weekly"
	if err := badGranularity.Validate(); err == nil {
		t.Error("unknown granularity should be rejected")
	}
}

func TestInMemoryFindRecordsFiltering(t *testing.T) {
	s := NewInMemoryMetricStore()
	ctx := context.Background()

	s.Add("t1",
		record("c1", "2025-06-02", models.PlatformGoogleAds, 10),
		record("c1", "2025-06-20", models.PlatformGoogleAds, 20),
		record("c2", "2025-06-02", models.PlatformFacebook, 30),
	)
	s.Add("t2", record("c9", "2025-06-02", models.PlatformGoogleAds, 99))

	f := rangeFilter("2025-06-01", "2025-06-10")
	got, err := s.FindRecords(ctx, "t1", f)
	if err != nil {
		t.Fatalf("FindRecords failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("date filter: got %d records, want 2", len(got))
	}

	f.Platforms = []models.Platform{models.PlatformFacebook}
	got, err = s.FindRecords(ctx, "t1", f)
	if err != nil {
		t.Fatalf("FindRecords failed: %v", err)
	}
	if len(got) != 1 || got[0].CampaignID != "c2" {
		t.Errorf("platform filter: got %+v", got)
	}

	f.Platforms = nil
	f.CampaignIDs = []string{"c1"}
	got, err = s.FindRecords(ctx, "t1", f)
	if err != nil {
		t.Fatalf("FindRecords failed: %v", err)
	}
	if len(got) != 1 || got[0].CampaignID != "c1" {
		t.Errorf("campaign filter: got %+v", got)
	}
}

func TestInMemoryGroupSums(t *testing.T) {
	s := NewInMemoryMetricStore()
	ctx := context.Background()

	s.Add("t1",
		record("c1", "2025-06-03", models.PlatformGoogleAds, 20),
		record("c2", "2025-06-02", models.PlatformGoogleAds, 10),
		record("c1", "2025-06-02", models.PlatformFacebook, 5),
	)

	rows, err := s.GroupSums(ctx, "t1", rangeFilter("2025-06-01", "2025-06-30"), models.GroupByDay)
	if err != nil {
		t.Fatalf("GroupSums failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d buckets, want 2", len(rows))
	}
	if rows[0].Key != "2025-06-02" || rows[1].Key != "2025-06-03" {
		t.Errorf("buckets not sorted: %v, %v", rows[0].Key, rows[1].Key)
	}
	if rows[0].Spend != 15 {
		t.Errorf("2025-06-02 spend = %v, want 15", rows[0].Spend)
	}
}

func TestInMemoryCampaignRepoTenantScoped(t *testing.T) {
	r := NewInMemoryCampaignRepo()
	ctx := context.Background()

	r.Put(models.CampaignMeta{ID: "c1", TenantID: "t1", Name: "Summer Sale"})
	r.Put(models.CampaignMeta{ID: "c2", TenantID: "t2", Name: "Other Tenant"})

	metas, err := r.GetMeta(ctx, "t1", []string{"c1", "c2", "missing"})
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("got %d metas, want 1", len(metas))
	}
	if metas["c1"].Name != "Summer Sale" {
		t.Errorf("meta = %+v", metas["c1"])
	}
}
