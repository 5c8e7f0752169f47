package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/radiusdt/vector-analytics/internal/config"
)

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled: true,
		Keys: map[string]string{
			"key-one": "tenant-1",
			"key-two": "tenant-2",
		},
		SkipPaths: []string{"/health", "/metrics"},
	}
}

func echoTenant() (http.Handler, *string) {
	var seen string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TenantID(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &seen
}

func TestAuthResolvesKeyToTenant(t *testing.T) {
	next, seen := echoTenant()
	h := NewAuthMiddleware(authConfig(), zap.NewNop()).Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/analytics/summary", nil)
	req.Header.Set(AuthHeaderName, "key-two")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if *seen != "tenant-2" {
		t.Errorf("tenant = %q, want tenant-2", *seen)
	}
}

func TestAuthAcceptsQueryParam(t *testing.T) {
	next, seen := echoTenant()
	h := NewAuthMiddleware(authConfig(), zap.NewNop()).Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/ws?api_key=key-one", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if *seen != "tenant-1" {
		t.Errorf("tenant = %q, want tenant-1", *seen)
	}
}

func TestAuthRejectsMissingAndInvalidKeys(t *testing.T) {
	next, _ := echoTenant()
	h := NewAuthMiddleware(authConfig(), zap.NewNop()).Handler(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/summary", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/analytics/summary", nil)
	req.Header.Set(AuthHeaderName, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid key: status = %d, want 401", rec.Code)
	}
}

func TestAuthSkipPaths(t *testing.T) {
	next, _ := echoTenant()
	h := NewAuthMiddleware(authConfig(), zap.NewNop()).Handler(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("skip path: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	h := NewRateLimitMiddleware(cfg, zap.NewNop()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	statuses := make(map[int]int)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/summary", nil))
		statuses[rec.Code]++
	}

	if statuses[http.StatusOK] != 2 {
		t.Errorf("allowed %d requests, want burst of 2", statuses[http.StatusOK])
	}
	if statuses[http.StatusTooManyRequests] != 3 {
		t.Errorf("rejected %d requests, want 3", statuses[http.StatusTooManyRequests])
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}
	h := NewRateLimitMiddleware(cfg, zap.NewNop()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
