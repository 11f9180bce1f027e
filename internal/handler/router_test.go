package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/streamhunter/internal/middleware"
	"github.com/hitoshi/streamhunter/internal/model"
)

func newTestRouter(channels *mockChannelReader, links *mockLinkStore, pinger *mockPinger) http.Handler {
	return NewRouter(&RouterDeps{
		Logger:          slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
		Channels:        channels,
		Links:           links,
		CheckResults:    &mockCheckHistory{},
		Playlist:        &mockPlaylistBuilder{content: "#EXTM3U\n"},
		Health:          pinger,
		FreshnessWindow: 24 * time.Hour,
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(&mockChannelReader{}, &mockLinkStore{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_HealthzDBDown(t *testing.T) {
	router := newTestRouter(&mockChannelReader{}, &mockLinkStore{}, &mockPinger{err: errors.New("down")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(&mockChannelReader{}, &mockLinkStore{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_PlaylistM3URoute(t *testing.T) {
	router := newTestRouter(&mockChannelReader{}, &mockLinkStore{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/playlist.m3u", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "#EXTM3U\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRouter_SummaryEndpoint(t *testing.T) {
	links := &mockLinkStore{links: []*model.Link{
		testLink("a", "ch1", model.LinkStatusValid, time.Hour),
		testLink("b", "ch1", model.LinkStatusValid, 48*time.Hour),
		testLink("c", "ch1", model.LinkStatusUnchecked, 0),
	}}
	channels := &mockChannelReader{channels: []*model.Channel{
		{ID: "ch1", Name: "CCTV1", IsActive: true},
	}}
	router := newTestRouter(channels, links, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body summaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body.ActiveChannels != 1 {
		t.Errorf("ActiveChannels = %d, want 1", body.ActiveChannels)
	}
	if body.LinkCounts["valid"] != 2 {
		t.Errorf("LinkCounts[valid] = %d, want 2", body.LinkCounts["valid"])
	}
	if body.LinkCounts["unchecked"] != 1 {
		t.Errorf("LinkCounts[unchecked] = %d, want 1", body.LinkCounts["unchecked"])
	}
	if body.StaleCount != 1 {
		t.Errorf("StaleCount = %d, want 1", body.StaleCount)
	}
}

func TestRouter_RateLimitApplied(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            0.001,
		Burst:           1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	router := NewRouter(&RouterDeps{
		Logger:          slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
		RateLimiter:     rl,
		Channels:        &mockChannelReader{},
		Links:           &mockLinkStore{},
		CheckResults:    &mockCheckHistory{},
		Playlist:        &mockPlaylistBuilder{},
		Health:          &mockPinger{},
		FreshnessWindow: 24 * time.Hour,
	})

	first := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	first.RemoteAddr = "192.0.2.1:1000"
	router.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	second.RemoteAddr = "192.0.2.1:1001"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, second)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}

	// /healthz はレート制限の対象外
	health := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	health.RemoteAddr = "192.0.2.1:1002"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, health)
	if w.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", w.Code)
	}
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(&mockChannelReader{}, &mockLinkStore{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
