package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/analytics"
	"github.com/radiusdt/vector-analytics/internal/cache"
	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/realtime"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{Enabled: false},
		Realtime: config.RealtimeConfig{
			Channel:         "analytics:events:test",
			DefaultInterval: 30 * time.Second,
			MinInterval:     time.Second,
			MaxInterval:     5 * time.Minute,
			WriteTimeout:    time.Second,
		},
	}
}

func testServer(t *testing.T, store storage.MetricStore) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	c := cache.New(kv.NewMemoryStore(), time.Minute, logger, nil)
	service := analytics.NewService(store, storage.NewInMemoryCampaignRepo(), c, logger, nil)

	cfg := testConfig()
	hub := realtime.NewHub(cfg.Realtime, service, kv.NewMemoryBroker(), logger, nil)
	t.Cleanup(hub.Close)
	service.SetNotifier(hub)

	return NewServer(&Dependencies{
		Service: service,
		Hub:     hub,
		Config:  cfg,
		Logger:  logger,
		Metrics: nil,
	})
}

func seededStore() *storage.InMemoryMetricStore {
	store := storage.NewInMemoryMetricStore()
	d, _ := time.Parse("2006-01-02", "2025-06-02")
	store.Add("t1",
		models.MetricRecord{CampaignID: "c1", Date: d, Platform: models.PlatformGoogleAds,
			Spend: 100, Clicks: 50, Impressions: 1000, Conversions: 5, Revenue: 300},
		models.MetricRecord{CampaignID: "c1", Date: d.AddDate(0, 0, 1), Platform: models.PlatformGoogleAds,
			Spend: 120, Clicks: 60, Impressions: 1200, Conversions: 6, Revenue: 360},
	)
	return store
}

func TestSummaryEndpoint(t *testing.T) {
	srv := testServer(t, seededStore())

	req := httptest.NewRequest(http.MethodGet,
		"/analytics/summary?tenant_id=t1&from=2025-06-01&to=2025-06-30", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.AggregatedMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 220.0, got.TotalSpend)
	assert.Equal(t, 3.0, got.AverageROAS)
}

func TestSummaryEndpointValidation(t *testing.T) {
	srv := testServer(t, seededStore())

	cases := []struct {
		name string
		url  string
	}{
		{"missing range", "/analytics/summary?tenant_id=t1"},
		{"inverted range", "/analytics/summary?tenant_id=t1&from=2025-06-30&to=2025-06-01"},
		{"bad platform", "/analytics/summary?tenant_id=t1&from=2025-06-01&to=2025-06-30&platforms=myspace"},
		{"missing tenant", "/analytics/summary?from=2025-06-01&to=2025-06-30"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSummaryEndpointMethodNotAllowed(t *testing.T) {
	srv := testServer(t, seededStore())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/analytics/summary?tenant_id=t1&from=2025-06-01&to=2025-06-30", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStoreUnavailableReturns503(t *testing.T) {
	srv := testServer(t, unavailableStore{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/analytics/summary?tenant_id=t1&from=2025-06-01&to=2025-06-30", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTopCampaignsEndpoint(t *testing.T) {
	srv := testServer(t, seededStore())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/analytics/top-campaigns?tenant_id=t1&from=2025-06-01&to=2025-06-30&metric=spend&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rows []models.CampaignStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].CampaignID)
}

func TestTimeSeriesEndpoint(t *testing.T) {
	srv := testServer(t, seededStore())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/analytics/timeseries?tenant_id=t1&from=2025-06-01&to=2025-06-30&group=day", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var points []models.TimeSeriesPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Len(t, points, 2)
}

func TestIngestionCompleteEndpoint(t *testing.T) {
	srv := testServer(t, seededStore())

	body := `{"tenant_id":"t1","campaign_ids":["c1"],"platform":"google_ads"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/ingestion-complete",
		jsonBody(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Missing tenant is rejected.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/ingestion-complete",
		jsonBody(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, seededStore())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

type unavailableStore struct{}

func (unavailableStore) FindRecords(context.Context, string, storage.QueryFilter) ([]models.MetricRecord, error) {
	return nil, storage.ErrUnavailable
}

func (unavailableStore) GroupSums(context.Context, string, storage.QueryFilter, models.GroupKey) ([]storage.GroupSumRow, error) {
	return nil, storage.ErrUnavailable
}
