package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		d, _ := limiter.Allow(context.Background(), "1.2.3.4")
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	d, _ := limiter.Allow(context.Background(), "1.2.3.4")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be limited, got %+v", d)
	}
	if other, _ := limiter.Allow(context.Background(), "5.6.7.8"); !other.Allowed {
		t.Fatal("limits must be per key")
	}

	now = now.Add(time.Minute)
	if d, _ := limiter.Allow(context.Background(), "1.2.3.4"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("new window should reset the count, got %+v", d)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewMemoryLimiter(1, 15*time.Minute)
	handler := RateLimit(limiter, 15*time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := errorBody(t, rec); got != "Too many requests from this IP, please try again after 15 minutes" {
		t.Fatalf("unexpected message %q", got)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, context.DeadlineExceeded
}

func TestRateLimitFailsOpen(t *testing.T) {
	handler := RateLimit(brokenLimiter{}, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when limiter fails, got %d", rec.Code)
	}
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	limiter := NewRedisLimiter(client, "test-ratelimit", 2, time.Minute)
	key := uuid.NewString()
	defer client.Del(ctx, "test-ratelimit:"+key)

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, key)
		if err != nil {
			t.Fatalf("Allow err: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	d, err := limiter.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow err: %v", err)
	}
	if d.Allowed {
		t.Fatal("third request should be limited")
	}
	if time.Until(d.ResetAt) > time.Minute {
		t.Fatalf("reset beyond window: %v", d.ResetAt)
	}
}
