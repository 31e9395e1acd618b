package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type refusingLimiter struct {
	wait time.Duration
	keys []string
}

func (l *refusingLimiter) Allow(key string) (bool, time.Duration) {
	l.keys = append(l.keys, key)
	return false, l.wait
}

func TestRateLimitMiddlewareRefusal(t *testing.T) {
	limiter := &refusingLimiter{wait: 2500 * time.Millisecond}
	middleware := rateLimitMiddleware(limiter, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not execute when rate limited")
	}))

	req := httptest.NewRequest(http.MethodPost, DocumentsPath, nil)
	req.Header.Set("Authorization", "ApiKey alice:s3cret")
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After rounded up to 3, got %q", got)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "user:alice" {
		t.Fatalf("expected limiter keyed by API user, got %v", limiter.keys)
	}
}

func TestClientLimiterSeparatesClients(t *testing.T) {
	limiter := newClientLimiter(1, 1)

	if ok, _ := limiter.Allow("user:alice"); !ok {
		t.Fatalf("expected first request for alice to pass")
	}
	ok, wait := limiter.Allow("user:alice")
	if ok {
		t.Fatalf("expected second request for alice to be refused")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("expected a wait of at most one second, got %s", wait)
	}
	if ok, _ := limiter.Allow("user:bob"); !ok {
		t.Fatalf("expected bob to have a separate bucket")
	}
}

func TestClientLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	limiter := newClientLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	for _, host := range []string{"addr:10.0.0.1", "addr:10.0.0.2", "addr:10.0.0.3"} {
		if ok, _ := limiter.Allow(host); !ok {
			t.Fatalf("expected first request from %s to pass", host)
		}
	}
	if n := limiter.size(); n != 3 {
		t.Fatalf("expected 3 buckets, got %d", n)
	}

	now = now.Add(minIdleTTL / 2)
	if ok, _ := limiter.Allow("addr:10.0.0.1"); !ok {
		t.Fatalf("expected refilled bucket to pass")
	}

	now = now.Add(minIdleTTL/2 + time.Second)
	if ok, _ := limiter.Allow("addr:10.0.0.4"); !ok {
		t.Fatalf("expected new client to pass")
	}
	if n := limiter.size(); n != 2 {
		t.Fatalf("expected idle buckets to be dropped, got %d buckets", n)
	}
}

func TestClientKey(t *testing.T) {
	testCases := map[string]struct {
		authorization string
		remoteAddr    string
		want          string
	}{
		"api user":             {"ApiKey alice:s3cret", "10.0.0.1:1234", "user:alice"},
		"malformed key":        {"ApiKey nocolon", "10.0.0.1:1234", "addr:10.0.0.1"},
		"other scheme":         {"Bearer token", "10.0.0.2:80", "addr:10.0.0.2"},
		"anonymous":            {"", "10.0.0.3:80", "addr:10.0.0.3"},
		"address without port": {"", "pipe", "addr:pipe"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			if got := clientKey(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if got := retryAfterSeconds(0); got != "1" {
		t.Fatalf("expected minimum of 1 second, got %s", got)
	}
	if got := retryAfterSeconds(1200 * time.Millisecond); got != "2" {
		t.Fatalf("expected 2, got %s", got)
	}
}
