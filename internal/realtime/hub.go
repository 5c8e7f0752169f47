// Package realtime fans live aggregate updates out to subscribed clients.
// Rooms group connections sharing a tenant and filter so recomputation and
// pushes happen once per room, and a shared broadcast channel relays
// ingestion events between server instances.
package realtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/kv"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/models"
)

// Snapshotter computes the current aggregate for a subscription scope.
// Implemented by the analytics service.
type Snapshotter interface {
	Snapshot(ctx context.Context, tenantID string, campaignIDs []string) (models.Snapshot, error)
}

// snapshotTimeout bounds one room recompute.
const snapshotTimeout = 10 * time.Second

// Hub owns the room registry for one server instance. It is an explicit,
// injectable object so tests can run isolated registries side by side.
type Hub struct {
	cfg        config.RealtimeConfig
	snapshots  Snapshotter
	broker     kv.Broker
	logger     *zap.Logger
	metrics    *metrics.Metrics
	instanceID string

	mu      sync.Mutex
	rooms   map[string]*room
	byConn  map[string]*room
	clients int

	done chan struct{}
}

// room is the per-(tenant, filter) subscription state. Pure cache: it is
// discarded when its last member leaves and rebuilt by the next subscribe.
// members and stopped are guarded by the hub mutex.
type room struct {
	sig       string
	tenantID  string
	campaigns []string
	fields    []models.MetricField
	interval  time.Duration

	members map[string]Conn
	stopped bool

	// dirty coalesces "this room's data may have changed" signals from
	// the periodic timer path and the broadcast path into one handler.
	dirty chan struct{}
}

// NewHub creates a hub bound to a broadcast channel.
func NewHub(cfg config.RealtimeConfig, snapshots Snapshotter, broker kv.Broker, logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:        cfg,
		snapshots:  snapshots,
		broker:     broker,
		logger:     logger,
		metrics:    m,
		instanceID: uuid.NewString(),
		rooms:      make(map[string]*room),
		byConn:     make(map[string]*room),
		done:       make(chan struct{}),
	}
}

// Subscribe places a connection in the room matching its filter, creating
// the room and its periodic job on first subscribe, and pushes an initial
// snapshot to the new connection.
func (h *Hub) Subscribe(ctx context.Context, conn Conn, req SubscribeRequest) error {
	fields := make([]models.MetricField, 0, len(req.Metrics))
	for _, name := range req.Metrics {
		f, err := models.ParseMetricField(name)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	interval := h.clampInterval(req.UpdateIntervalMs)
	sig := roomSignature(conn.TenantID(), req.Campaigns, req.Metrics, interval)

	h.mu.Lock()
	if prev, ok := h.byConn[conn.ID()]; ok {
		// Re-subscribe replaces the previous subscription.
		delete(prev.members, conn.ID())
		delete(h.byConn, conn.ID())
		h.clients--
	}

	r, ok := h.rooms[sig]
	if !ok || r.stopped {
		r = &room{
			sig:       sig,
			tenantID:  conn.TenantID(),
			campaigns: append([]string(nil), req.Campaigns...),
			fields:    fields,
			interval:  interval,
			members:   make(map[string]Conn),
			dirty:     make(chan struct{}, 1),
		}
		h.rooms[sig] = r
		go h.runRoom(r)
	}
	r.members[conn.ID()] = conn
	h.byConn[conn.ID()] = r
	h.clients++
	h.updateGauges()
	h.mu.Unlock()

	h.logger.Debug("subscribed",
		zap.String("tenant_id", conn.TenantID()),
		zap.String("room", sig),
		zap.Duration("interval", interval),
	)

	// Initial snapshot goes to the new connection only; the room's periodic
	// job covers everyone else.
	snap, err := h.computeSnapshot(ctx, r)
	if err != nil {
		h.logger.Warn("initial snapshot failed",
			zap.String("tenant_id", conn.TenantID()),
			zap.Error(err),
		)
		return nil
	}
	h.send(conn, EventSnapshot, snap)

	return nil
}

// Leave removes a connection from its room, synchronously. The room's
// periodic job notices emptiness at its next wake-up and retires itself;
// nudging dirty makes that prompt without racing the timer.
func (h *Hub) Leave(conn Conn) {
	h.mu.Lock()
	r, ok := h.byConn[conn.ID()]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(r.members, conn.ID())
	delete(h.byConn, conn.ID())
	h.clients--
	empty := len(r.members) == 0
	h.updateGauges()
	h.mu.Unlock()

	if empty {
		r.markDirty()
	}
}

// PublishIngestion relays an ingestion event to every instance on the shared
// channel and marks matching local rooms dirty directly, so local clients
// don't depend on the broker loop-back.
func (h *Hub) PublishIngestion(ctx context.Context, ev models.IngestionEvent) error {
	h.markMatching(ev.TenantID, ev.CampaignIDs)

	env := envelope{
		EventID:   uuid.NewString(),
		Origin:    h.instanceID,
		Kind:      kindIngestion,
		Ingestion: &ev,
	}
	return h.publish(ctx, env)
}

// PublishAlert pushes an alert to the tenant's local rooms and relays it to
// the other instances.
func (h *Hub) PublishAlert(ctx context.Context, alert models.Alert) error {
	h.pushAlert(alert)

	env := envelope{
		EventID: uuid.NewString(),
		Origin:  h.instanceID,
		Kind:    kindAlert,
		Alert:   &alert,
	}
	return h.publish(ctx, env)
}

// Close stops every room job. Connections are owned by the transport layer
// and closed there.
func (h *Hub) Close() {
	close(h.done)
}

// Rooms reports how many rooms are currently active.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// runRoom is the single handler for one room's updates. Timer ticks and
// broadcast-driven dirty marks funnel into the same recompute-and-push.
func (h *Hub) runRoom(r *room) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-r.dirty:
		case <-h.done:
			return
		}

		if h.retireIfEmpty(r) {
			return
		}

		h.pushSnapshot(r)
	}
}

// retireIfEmpty discards the room when its member set is empty. Checked at
// each wake-up rather than from the unsubscribe path, so "last member
// leaves" never races "timer fires".
func (h *Hub) retireIfEmpty(r *room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(r.members) > 0 {
		return false
	}
	r.stopped = true
	if h.rooms[r.sig] == r {
		delete(h.rooms, r.sig)
	}
	h.updateGauges()
	h.logger.Debug("room retired", zap.String("room", r.sig))
	return true
}

// pushSnapshot recomputes the room aggregate and pushes it to every member.
// A failed recompute skips this push; the next tick retries, so one store
// hiccup never kills the timer.
func (h *Hub) pushSnapshot(r *room) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := h.computeSnapshot(ctx, r)
	if err != nil {
		h.logger.Warn("room snapshot failed",
			zap.String("room", r.sig),
			zap.Error(err),
		)
		return
	}

	for _, conn := range h.roomMembers(r) {
		h.send(conn, EventSnapshot, snap)
	}
}

func (h *Hub) computeSnapshot(ctx context.Context, r *room) (models.Snapshot, error) {
	snap, err := h.snapshots.Snapshot(ctx, r.tenantID, r.campaigns)
	if err != nil {
		return models.Snapshot{}, err
	}

	if len(r.fields) > 0 {
		filtered := make(map[string]float64, len(r.fields))
		for _, f := range r.fields {
			filtered[string(f)] = f.ValueOf(snap.Aggregated)
		}
		snap.Filtered = filtered
	}

	return snap, nil
}

func (h *Hub) roomMembers(r *room) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Conn, 0, len(r.members))
	for _, c := range r.members {
		out = append(out, c)
	}
	return out
}

// send delivers one event, at most once. No retry queue: a missed push is
// superseded by the next snapshot.
func (h *Hub) send(conn Conn, event string, payload any) {
	if err := conn.Send(event, payload); err != nil {
		if h.metrics != nil {
			h.metrics.RecordPushFailure()
		}
		h.logger.Debug("push failed",
			zap.String("conn_id", conn.ID()),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPush(event)
	}
}

// markMatching marks every local room in the event's tenant/campaign scope
// dirty.
func (h *Hub) markMatching(tenantID string, campaignIDs []string) {
	h.mu.Lock()
	var matched []*room
	for _, r := range h.rooms {
		if r.tenantID == tenantID && scopesOverlap(r.campaigns, campaignIDs) {
			matched = append(matched, r)
		}
	}
	h.mu.Unlock()

	for _, r := range matched {
		r.markDirty()
	}
}

func (h *Hub) pushAlert(alert models.Alert) {
	h.mu.Lock()
	var conns []Conn
	for _, r := range h.rooms {
		if r.tenantID != alert.TenantID || !scopesOverlap(r.campaigns, alert.CampaignIDs) {
			continue
		}
		for _, c := range r.members {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.send(c, EventAlert, alert)
	}
}

func (h *Hub) clampInterval(ms int) time.Duration {
	if ms <= 0 {
		return h.cfg.DefaultInterval
	}
	d := time.Duration(ms) * time.Millisecond
	if d < h.cfg.MinInterval {
		return h.cfg.MinInterval
	}
	if d > h.cfg.MaxInterval {
		return h.cfg.MaxInterval
	}
	return d
}

func (h *Hub) updateGauges() {
	if h.metrics == nil {
		return
	}
	h.metrics.SetActiveRooms(len(h.rooms))
	h.metrics.SetConnectedClients(h.clients)
}

func (r *room) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// roomSignature derives the registry key for a subscription. Set-valued
// filter parts are sorted so equivalent filters share a room.
func roomSignature(tenantID string, campaigns, metricNames []string, interval time.Duration) string {
	return strings.Join([]string{
		tenantID,
		sortedJoin(campaigns),
		sortedJoin(metricNames),
		fmt.Sprintf("%d", interval.Milliseconds()),
	}, "|")
}

func sortedJoin(values []string) string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// scopesOverlap reports whether a room's campaign filter intersects an
// event's campaign scope. An empty set on either side matches everything.
func scopesOverlap(roomCampaigns, eventCampaigns []string) bool {
	if len(roomCampaigns) == 0 || len(eventCampaigns) == 0 {
		return true
	}
	for _, rc := range roomCampaigns {
		for _, ec := range eventCampaigns {
			if rc == ec {
				return true
			}
		}
	}
	return false
}
