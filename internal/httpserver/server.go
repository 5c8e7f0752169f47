package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/analytics"
	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/middleware"
	"github.com/radiusdt/vector-analytics/internal/models"
	"github.com/radiusdt/vector-analytics/internal/realtime"
	"github.com/radiusdt/vector-analytics/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Service *analytics.Service
	Hub     *realtime.Hub
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers over the analytics service and fan-out hub.
type Server struct {
	service  *analytics.Service
	hub      *realtime.Hub
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		service: deps.Service,
		hub:     deps.Hub,
		logger:  deps.Logger,
		config:  deps.Config,
		metrics: deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the edge proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Analytics queries
	mux.HandleFunc("/analytics/summary", s.handleSummary)
	mux.HandleFunc("/analytics/platforms", s.handlePlatforms)
	mux.HandleFunc("/analytics/top-campaigns", s.handleTopCampaigns)
	mux.HandleFunc("/analytics/timeseries", s.handleTimeSeries)
	mux.HandleFunc("/analytics/trend", s.handleTrend)

	// Realtime subscriptions
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Pipeline callbacks
	mux.HandleFunc("/internal/ingestion-complete", s.handleIngestionComplete)
	mux.HandleFunc("/internal/alerts", s.handleAlert)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Analytics Queries ----

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, f, ok := s.queryScope(w, r)
	if !ok {
		return
	}

	result, err := s.service.Summary(r.Context(), tenantID, f)
	if err != nil {
		s.queryError(w, "summary", err)
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, f, ok := s.queryScope(w, r)
	if !ok {
		return
	}

	result, err := s.service.PlatformBreakdown(r.Context(), tenantID, f)
	if err != nil {
		s.queryError(w, "platforms", err)
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handleTopCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, f, ok := s.queryScope(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	metric, err := models.ParseMetricField(defaultStr(q.Get("metric"), "roas"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 10
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.errorResponse(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	result, err := s.service.TopCampaigns(r.Context(), tenantID, f, metric, limit)
	if err != nil {
		s.queryError(w, "top-campaigns", err)
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, f, ok := s.queryScope(w, r)
	if !ok {
		return
	}

	group, err := models.ParseGroupKey(r.URL.Query().Get("group"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.service.TimeSeries(r.Context(), tenantID, f, group)
	if err != nil {
		s.queryError(w, "timeseries", err)
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID, f, ok := s.queryScope(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	group, err := models.ParseGroupKey(q.Get("group"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	metric, err := models.ParseMetricField(defaultStr(q.Get("metric"), "spend"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.service.Trend(r.Context(), tenantID, f, group, metric)
	if err != nil {
		s.queryError(w, "trend", err)
		return
	}

	s.jsonResponse(w, result)
}

// ---- Realtime ----

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tenantID := s.tenant(r)
	if tenantID == "" {
		s.errorResponse(w, "tenant required", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := realtime.NewWSConn(ws, tenantID, s.hub, s.config.Realtime.WriteTimeout, s.logger)
	s.logger.Debug("websocket connected",
		zap.String("conn_id", conn.ID()),
		zap.String("tenant_id", tenantID),
	)
	conn.Serve(r.Context())
}

// ---- Pipeline Callbacks ----

func (s *Server) handleIngestionComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev models.IngestionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.service.HandleIngestion(r.Context(), ev); err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if alert.TenantID == "" {
		s.errorResponse(w, "tenant_id required", http.StatusBadRequest)
		return
	}

	if err := s.hub.PublishAlert(r.Context(), alert); err != nil {
		s.logger.Error("alert publish failed", zap.Error(err))
		s.errorResponse(w, "alert publish failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ---- Helper Methods ----

// queryScope resolves the tenant and parses the common query filter. On
// failure the error response is already written.
func (s *Server) queryScope(w http.ResponseWriter, r *http.Request) (string, storage.QueryFilter, bool) {
	tenantID := s.tenant(r)
	if tenantID == "" {
		s.errorResponse(w, "tenant required", http.StatusBadRequest)
		return "", storage.QueryFilter{}, false
	}

	f, err := parseFilter(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return "", storage.QueryFilter{}, false
	}

	return tenantID, f, true
}

// tenant resolves the request tenant: the authenticated identity when auth
// is on, otherwise an explicit query parameter (dev mode).
func (s *Server) tenant(r *http.Request) string {
	if t := middleware.TenantID(r.Context()); t != "" {
		return t
	}
	if !s.config.Auth.Enabled {
		return r.URL.Query().Get("tenant_id")
	}
	return ""
}

func (s *Server) queryError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, storage.ErrUnavailable) {
		s.logger.Error("store unavailable", zap.String("operation", operation), zap.Error(err))
		s.errorResponse(w, "metric store unavailable, retry later", http.StatusServiceUnavailable)
		return
	}
	// Remaining service errors are input validation failures.
	s.errorResponse(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseFilter builds a query filter from request parameters. Dates accept
// RFC3339 or plain YYYY-MM-DD; a date-only "to" extends to end of day.
func parseFilter(r *http.Request) (storage.QueryFilter, error) {
	q := r.URL.Query()

	from, _, err := parseDate(q.Get("from"))
	if err != nil {
		return storage.QueryFilter{}, err
	}
	to, dateOnly, err := parseDate(q.Get("to"))
	if err != nil {
		return storage.QueryFilter{}, err
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	f := storage.QueryFilter{
		From:        from,
		To:          to,
		Granularity: models.Granularity(q.Get("granularity")),
	}

	for _, p := range splitParam(q.Get("platforms")) {
		platform, err := models.ParsePlatform(p)
		if err != nil {
			return storage.QueryFilter{}, err
		}
		f.Platforms = append(f.Platforms, platform)
	}
	f.CampaignIDs = splitParam(q.Get("campaigns"))

	if err := f.Validate(); err != nil {
		return storage.QueryFilter{}, err
	}

	return f, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, errors.New("from and to are required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false, errors.New("invalid date " + strconv.Quote(v))
	}
	return t, true, nil
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
