package probe

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

const testUserAgent = "StreamHunter/1.0"

func newTestHTTPProber(t *testing.T, timeout time.Duration) *HTTPProber {
	t.Helper()
	var buf bytes.Buffer
	return NewHTTPProberWithClient(http.DefaultClient, newTestLogger(&buf), testUserAgent, timeout)
}

func TestProbeReachability_HEADSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("最初のリクエストはHEADであるべき, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 5*time.Second)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if result.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", result.Outcome)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if result.ResponseTimeMs < 0 {
		t.Errorf("ResponseTimeMs = %d, want >= 0", result.ResponseTimeMs)
	}
}

func TestProbeReachability_FallsBackToGETOn405(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			sawGet = true
			if !strings.HasPrefix(r.Header.Get("Range"), "bytes=0-") {
				t.Errorf("GETフォールバックはRangeヘッダを付与すべき, got %q", r.Header.Get("Range"))
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte("#EXTM3U\n"))
		}
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 5*time.Second)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if !sawGet {
		t.Error("HEADが405の場合はGETにフォールバックすべき")
	}
	if result.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", result.Outcome)
	}
	if result.StatusCode != http.StatusPartialContent {
		t.Errorf("StatusCode = %d, want 206", result.StatusCode)
	}
}

func TestProbeReachability_4xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 5*time.Second)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if result.Outcome != model.OutcomeNetworkError {
		t.Errorf("4xxはnetwork_errorを返すべき, got %v", result.Outcome)
	}
	if result.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", result.StatusCode)
	}
	if !strings.Contains(result.ErrorMessage, "403") {
		t.Errorf("エラーメッセージにステータスコードを含むべき, got %q", result.ErrorMessage)
	}
}

func TestProbeReachability_5xxIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 5*time.Second)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if result.Outcome != model.OutcomeNetworkError {
		t.Errorf("5xxはnetwork_errorを返すべき, got %v", result.Outcome)
	}
}

func TestProbeReachability_RedirectFollowed(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 5*time.Second)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if result.Outcome != model.OutcomeSuccess {
		t.Errorf("リダイレクト先が200なら成功を返すべき, got %v (%s)", result.Outcome, result.ErrorMessage)
	}
}

func TestProbeReachability_TooManyRedirects(t *testing.T) {
	// 自分自身へ無限リダイレクトするサーバー
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	// CheckRedirect付きのクライアントを明示的に構成する
	var buf bytes.Buffer
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return &tooManyRedirectsError{}
			}
			return nil
		},
	}
	p := NewHTTPProberWithClient(client, newTestLogger(&buf), testUserAgent, 5*time.Second)

	result := p.ProbeReachability(context.Background(), srv.URL)
	if result.Outcome != model.OutcomeProtocolError {
		t.Errorf("リダイレクト超過はprotocol_errorを返すべき, got %v", result.Outcome)
	}
}

// tooManyRedirectsError はリダイレクト超過を再現するテスト用エラー。
type tooManyRedirectsError struct{}

func (e *tooManyRedirectsError) Error() string { return "stopped after 3 redirects" }

func TestProbeReachability_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestHTTPProber(t, 50*time.Millisecond)
	result := p.ProbeReachability(context.Background(), srv.URL)

	if result.Outcome != model.OutcomeTimeout {
		t.Errorf("デッドライン超過はtimeoutを返すべき, got %v", result.Outcome)
	}
}
