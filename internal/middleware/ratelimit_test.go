package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, limit rate.Limit, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            limit,
		Burst:           burst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRateLimiter_AllowsWithinBurst はバースト内のリクエストが許可されることを検証する。
func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, rate.Limit(1), 3)
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("リクエスト%d: status = %d, want 200", i+1, w.Code)
		}
	}
}

// TestRateLimiter_RejectsOverBurst はバースト超過が429で拒否されることを検証する。
func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := newTestRateLimiter(t, rate.Limit(0.001), 2)
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
		req.RemoteAddr = "192.0.2.2:1000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	req.RemoteAddr = "192.0.2.2:1000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されていない")
	}
}

// TestRateLimiter_SeparateLimitPerIP はIPごとに独立した制限が適用されることを検証する。
func TestRateLimiter_SeparateLimitPerIP(t *testing.T) {
	rl := newTestRateLimiter(t, rate.Limit(0.001), 1)
	handler := rl.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	first.RemoteAddr = "192.0.2.3:1000"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	// 同一IPの2回目は拒否される
	second := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	second.RemoteAddr = "192.0.2.3:2000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("同一IPの2回目: status = %d, want 429", w.Code)
	}

	// 別IPは許可される
	other := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	other.RemoteAddr = "192.0.2.4:1000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("別IP: status = %d, want 200", w.Code)
	}

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

// TestRateLimiter_CleanupRemovesStaleEntries は期限切れエントリが削除されることを検証する。
func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: time.Nanosecond,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("192.0.2.5")
	time.Sleep(5 * time.Millisecond)
	rl.cleanup()

	if rl.LimiterCount() != 0 {
		t.Errorf("クリーンアップ後のLimiterCount = %d, want 0", rl.LimiterCount())
	}
}

// TestClientIP_StripsPort はRemoteAddrからポートが除去されることを検証する。
func TestClientIP_StripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:443"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %s, want 203.0.113.9", got)
	}

	req.RemoteAddr = "203.0.113.9"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("ポートなしのclientIP = %s, want 203.0.113.9", got)
	}
}
