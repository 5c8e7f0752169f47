package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/models"
)

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		Channel:         "analytics:events:test",
		DefaultInterval: time.Minute,
		MinInterval:     10 * time.Millisecond,
		MaxInterval:     5 * time.Minute,
		WriteTimeout:    time.Second,
	}
}

// fakeSnapshots counts how often a snapshot is computed.
type fakeSnapshots struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSnapshots) Snapshot(_ context.Context, tenantID string, _ []string) (models.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()
	return models.Snapshot{
		Aggregated: models.AggregatedMetrics{TotalSpend: float64(calls)},
		Timestamp:  time.Now().UTC(),
	}, nil
}

// fakeConn records every pushed event.
type fakeConn struct {
	id     string
	tenant string

	mu     sync.Mutex
	events []string
}

func (c *fakeConn) ID() string       { return c.id }
func (c *fakeConn) TenantID() string { return c.tenant }

func (c *fakeConn) Send(event string, _ any) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestHub(t *testing.T) (*Hub, *fakeSnapshots) {
	t.Helper()
	snaps := &fakeSnapshots{}
	h := NewHub(testRealtimeConfig(), snaps, kv.NewMemoryBroker(), zap.NewNop(), nil)
	t.Cleanup(h.Close)
	return h, snaps
}

func TestSubscribeSharesRoomForEquivalentFilters(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	a := &fakeConn{id: "a", tenant: "t1"}
	b := &fakeConn{id: "b", tenant: "t1"}

	require.NoError(t, h.Subscribe(ctx, a, SubscribeRequest{Campaigns: []string{"c1", "c2"}}))
	require.NoError(t, h.Subscribe(ctx, b, SubscribeRequest{Campaigns: []string{"c2", "c1"}}))

	assert.Equal(t, 1, h.Rooms(), "reordered campaign sets should share a room")
	assert.GreaterOrEqual(t, a.count(), 1, "subscriber gets an initial snapshot")
	assert.GreaterOrEqual(t, b.count(), 1)
}

func TestSubscribeSeparatesTenants(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Subscribe(ctx, &fakeConn{id: "a", tenant: "t1"}, SubscribeRequest{}))
	require.NoError(t, h.Subscribe(ctx, &fakeConn{id: "b", tenant: "t2"}, SubscribeRequest{}))

	assert.Equal(t, 2, h.Rooms(), "different tenants never share a room")
}

func TestSubscribeRejectsUnknownMetric(t *testing.T) {
	h, _ := newTestHub(t)

	err := h.Subscribe(context.Background(), &fakeConn{id: "a", tenant: "t1"},
		SubscribeRequest{Metrics: []string{"bogus"}})
	assert.Error(t, err)
	assert.Equal(t, 0, h.Rooms())
}

func TestRoomRetiresWhenEmpty(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	a := &fakeConn{id: "a", tenant: "t1"}
	b := &fakeConn{id: "b", tenant: "t1"}
	require.NoError(t, h.Subscribe(ctx, a, SubscribeRequest{}))
	require.NoError(t, h.Subscribe(ctx, b, SubscribeRequest{}))

	h.Leave(a)
	assert.Equal(t, 1, h.Rooms(), "room survives while a member remains")

	h.Leave(b)
	waitFor(t, func() bool { return h.Rooms() == 0 }, "empty room should retire")

	sent := a.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, sent, a.count(), "no pushes after leaving")
}

func TestPeriodicPushes(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	conn := &fakeConn{id: "a", tenant: "t1"}
	require.NoError(t, h.Subscribe(ctx, conn, SubscribeRequest{UpdateIntervalMs: 10}))

	waitFor(t, func() bool { return conn.count() >= 3 }, "periodic snapshots should keep arriving")
}

func TestIngestionMarksMatchingRoomsDirty(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	// Long interval: only a dirty mark can trigger a second push.
	matching := &fakeConn{id: "a", tenant: "t1"}
	other := &fakeConn{id: "b", tenant: "t1"}
	require.NoError(t, h.Subscribe(ctx, matching, SubscribeRequest{Campaigns: []string{"c1"}, UpdateIntervalMs: 60000}))
	require.NoError(t, h.Subscribe(ctx, other, SubscribeRequest{Campaigns: []string{"c9"}, UpdateIntervalMs: 60000}))

	baseline := other.count()

	require.NoError(t, h.PublishIngestion(ctx, models.IngestionEvent{
		TenantID:    "t1",
		CampaignIDs: []string{"c1"},
	}))

	waitFor(t, func() bool { return matching.count() >= 2 }, "matching room should push after ingestion")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, baseline, other.count(), "non-matching room stays quiet")
}

func TestCrossInstanceFanOut(t *testing.T) {
	broker := kv.NewMemoryBroker()
	snapsA := &fakeSnapshots{}
	snapsB := &fakeSnapshots{}

	hubA := NewHub(testRealtimeConfig(), snapsA, broker, zap.NewNop(), nil)
	hubB := NewHub(testRealtimeConfig(), snapsB, broker, zap.NewNop(), nil)
	t.Cleanup(hubA.Close)
	t.Cleanup(hubB.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubB.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	conn := &fakeConn{id: "b1", tenant: "t1"}
	require.NoError(t, hubB.Subscribe(ctx, conn, SubscribeRequest{UpdateIntervalMs: 60000}))
	waitFor(t, func() bool { return conn.count() >= 1 }, "initial snapshot")

	// An ingestion relayed through hub A reaches hub B's subscribers.
	require.NoError(t, hubA.PublishIngestion(ctx, models.IngestionEvent{TenantID: "t1"}))

	waitFor(t, func() bool { return conn.count() >= 2 }, "broadcast should reach the other instance")
}

func TestPublishAlertScopedToTenant(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	target := &fakeConn{id: "a", tenant: "t1"}
	bystander := &fakeConn{id: "b", tenant: "t2"}
	require.NoError(t, h.Subscribe(ctx, target, SubscribeRequest{UpdateIntervalMs: 60000}))
	require.NoError(t, h.Subscribe(ctx, bystander, SubscribeRequest{UpdateIntervalMs: 60000}))

	require.NoError(t, h.PublishAlert(ctx, models.Alert{
		TenantID: "t1",
		Severity: "warning",
		Message:  "spend spike",
	}))

	waitFor(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		for _, e := range target.events {
			if e == EventAlert {
				return true
			}
		}
		return false
	}, "alert should reach the tenant's subscribers")

	bystander.mu.Lock()
	for _, e := range bystander.events {
		assert.NotEqual(t, EventAlert, e, "alerts never cross tenants")
	}
	bystander.mu.Unlock()
}

func TestFilteredMetricsOnSnapshot(t *testing.T) {
	h, _ := newTestHub(t)

	var got models.Snapshot
	conn := &snapshotConn{fakeConn: fakeConn{id: "a", tenant: "t1"}, capture: &got}
	require.NoError(t, h.Subscribe(context.Background(), conn, SubscribeRequest{
		Metrics:          []string{"spend", "roas"},
		UpdateIntervalMs: 60000,
	}))

	require.Contains(t, got.Filtered, "spend")
	require.Contains(t, got.Filtered, "roas")
	assert.Len(t, got.Filtered, 2)
}

func TestClampInterval(t *testing.T) {
	h, _ := newTestHub(t)

	assert.Equal(t, time.Minute, h.clampInterval(0), "zero requests the default")
	assert.Equal(t, 10*time.Millisecond, h.clampInterval(1), "below minimum clamps up")
	assert.Equal(t, 5*time.Minute, h.clampInterval(3600000), "above maximum clamps down")
	assert.Equal(t, 30*time.Second, h.clampInterval(30000))
}

type snapshotConn struct {
	fakeConn
	capture *models.Snapshot
}

func (c *snapshotConn) Send(event string, payload any) error {
	if snap, ok := payload.(models.Snapshot); ok {
		*c.capture = snap
	}
	return c.fakeConn.Send(event, payload)
}
