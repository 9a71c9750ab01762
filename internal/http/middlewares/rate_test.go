package middlewares_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/rate"
)

func limitedGet(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/refresh", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWithRateLimit_EnforcesWindow(t *testing.T) {
	// A wide window keeps the whole test inside a single one.
	limiter := rate.NewMemoryLimiter(2, time.Hour)
	h := middlewares.Chain(okHandler(), middlewares.WithRateLimit(middlewares.RateLimitConfig{
		Limiter: limiter,
		KeyFunc: middlewares.IPOnlyRateKey,
	}))

	rec := limitedGet(h, "203.0.113.7:4000")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first: %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Fatalf("remaining after first = %q, want 1", got)
	}

	if rec = limitedGet(h, "203.0.113.7:4000"); rec.Code != http.StatusNoContent {
		t.Fatalf("second: %d", rec.Code)
	}

	rec = limitedGet(h, "203.0.113.7:4000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third: %d, want 429", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("code = %q", got)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatalf("429 must carry Retry-After and X-RateLimit-Reset, got %v", rec.Header())
	}

	// A different source address has its own counter.
	if rec = limitedGet(h, "203.0.113.8:4000"); rec.Code != http.StatusNoContent {
		t.Fatalf("other ip: %d", rec.Code)
	}
}

func TestWithRateLimit_Whitelist(t *testing.T) {
	limiter := rate.NewMemoryLimiter(1, time.Hour)
	h := middlewares.Chain(okHandler(), middlewares.WithRateLimit(middlewares.RateLimitConfig{
		Limiter:   limiter,
		KeyFunc:   middlewares.IPOnlyRateKey,
		Whitelist: []string{"/healthz"},
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("whitelisted request %d: %d", i, rec.Code)
		}
	}
}

// brokenLimiter simulates the backend (Redis) being down.
type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) (rate.Result, error) {
	return rate.Result{}, fmt.Errorf("dial tcp 10.0.0.9:6379: connection refused")
}

func TestWithRateLimit_FailsOpen(t *testing.T) {
	h := middlewares.Chain(okHandler(), middlewares.WithRateLimit(middlewares.RateLimitConfig{
		Limiter: brokenLimiter{},
		KeyFunc: middlewares.IPOnlyRateKey,
	}))

	// Throttling degradation must not take authentication down with it.
	for i := 0; i < 3; i++ {
		if rec := limitedGet(h, "203.0.113.7:4000"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d with broken limiter: %d", i, rec.Code)
		}
	}
}

func TestWithRateLimit_NoLimiterIsNoop(t *testing.T) {
	h := middlewares.Chain(okHandler(), middlewares.WithRateLimit(middlewares.RateLimitConfig{}))
	if rec := limitedGet(h, "203.0.113.7:4000"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDefaultRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/device/code",
		strings.NewReader(`{"client_id":"tv-1","scopes":["read"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4000"

	if got, want := middlewares.DefaultRateKey(req), "203.0.113.7|/v1/device/code|tv-1"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
	// The body was read to extract client_id and must be fully replayable
	// for the handler behind the middleware.
	body, err := io.ReadAll(req.Body)
	if err != nil || !strings.Contains(string(body), `"tv-1"`) {
		t.Fatalf("body not replayed: %q, %v", body, err)
	}

	// Forwarded requests key on the original client, not the proxy.
	req = httptest.NewRequest(http.MethodPost, "/v1/device/code", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.20, 10.0.0.1")
	if got := middlewares.DefaultRateKey(req); got != "198.51.100.20|/v1/device/code|-" {
		t.Fatalf("key = %q", got)
	}

	// Admin paths never read the body.
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/sweep", strings.NewReader(`{"client_id":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4000"
	if got := middlewares.DefaultRateKey(req); got != "203.0.113.7|/v1/admin/sweep|-" {
		t.Fatalf("admin key = %q", got)
	}
}

func TestChain_AppliesLeftToRight(t *testing.T) {
	var order []string
	mark := func(name string) middlewares.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := middlewares.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Fatalf("order = %v", order)
	}
}
