package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/security"
)

// maxRedirects は到達性検証で追跡するリダイレクトの上限。
const maxRedirects = 3

// rangeProbeBytes はGETフォールバックで要求する先頭バイト数。
const rangeProbeBytes = 1024

// HTTPProber はHTTPによる到達性検証のアダプタ。
// HEADリクエストを試行し、HEAD未対応のオリジンには先頭1KBの
// RangeつきGETでフォールバックする。IPTVオリジンはHEADに405/501を
// 返すものが多いため、この2段構えが必要になる。
type HTTPProber struct {
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
}

// NewHTTPProber はHTTPProberを生成する。
// ssrfGuardからSSRF防止機能付きのHTTPクライアントを取得する。
func NewHTTPProber(ssrfGuard security.SSRFGuardService, logger *slog.Logger, userAgent string, timeout time.Duration) *HTTPProber {
	client := ssrfGuard.NewSafeClient(timeout)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
	return &HTTPProber{
		client:    client,
		logger:    logger,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// NewHTTPProberWithClient はHTTPクライアントを直接指定してHTTPProberを生成する。
// テストでhttptestサーバーに接続する場合に使用する。
func NewHTTPProberWithClient(client *http.Client, logger *slog.Logger, userAgent string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client:    client,
		logger:    logger,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// ProbeReachability は到達性検証を実行する。
// 200-399を到達可能、4xx/5xxをnetwork_error（ステータスコードを
// エラーメッセージに含む）、タイムアウトをtimeoutとして分類する。
// 想定内の失敗ではエラーを返さず、常に結果値を返す。
func (p *HTTPProber) ProbeReachability(ctx context.Context, url string) ReachabilityResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	// まずHEADリクエストを試行
	result, headUnsupported := p.probeHEAD(ctx, url, start)
	if !headUnsupported {
		return result
	}

	// HEAD未対応: RangeつきGETでフォールバック
	return p.probeRangedGET(ctx, url, start)
}

// probeHEAD はHEADリクエストによる検証を行う。
// 2番目の戻り値はGETフォールバックが必要かを示す。
func (p *HTTPProber) probeHEAD(ctx context.Context, url string, start time.Time) (ReachabilityResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ReachabilityResult{
			Outcome:      model.OutcomeProtocolError,
			ErrorMessage: fmt.Sprintf("リクエスト作成に失敗: %s", err.Error()),
		}, false
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		// HEADそのものに失敗したオリジンはGETで再試行する
		return ReachabilityResult{}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return ReachabilityResult{}, true
	}

	return classifyResponse(resp.StatusCode, time.Since(start)), false
}

// probeRangedGET は先頭1KBのRangeつきGETリクエストによる検証を行う。
func (p *HTTPProber) probeRangedGET(ctx context.Context, url string, start time.Time) ReachabilityResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ReachabilityResult{
			Outcome:      model.OutcomeProtocolError,
			ErrorMessage: fmt.Sprintf("リクエスト作成に失敗: %s", err.Error()),
		}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", rangeProbeBytes-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return classifyRequestError(err, time.Since(start))
	}
	defer resp.Body.Close()

	// 少量のデータを読み取ってストリームが実際に応答することを確認する
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent {
		if _, err := io.CopyN(io.Discard, resp.Body, 1); err != nil && err != io.EOF {
			return classifyRequestError(err, time.Since(start))
		}
	}

	return classifyResponse(resp.StatusCode, time.Since(start))
}

// classifyResponse はHTTPステータスコードを検証結果に分類する。
// 200-399を到達可能、4xx/5xxをnetwork_errorとして扱う。
func classifyResponse(statusCode int, elapsed time.Duration) ReachabilityResult {
	result := ReachabilityResult{
		StatusCode:     statusCode,
		ResponseTimeMs: elapsed.Milliseconds(),
	}

	if statusCode >= 200 && statusCode < 400 {
		result.Outcome = model.OutcomeSuccess
		return result
	}

	result.Outcome = model.OutcomeNetworkError
	result.ErrorMessage = fmt.Sprintf("HTTPエラー: %d", statusCode)
	return result
}

// classifyRequestError はリクエスト失敗を検証結果に分類する。
// デッドライン超過をtimeout、リダイレクト超過をprotocol_error、
// それ以外をnetwork_errorとして扱う。
func classifyRequestError(err error, elapsed time.Duration) ReachabilityResult {
	result := ReachabilityResult{
		ResponseTimeMs: elapsed.Milliseconds(),
		ErrorMessage:   err.Error(),
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded) || isTimeoutError(err):
		result.Outcome = model.OutcomeTimeout
		result.ErrorMessage = "HTTPリクエストがタイムアウトしました"
	case strings.Contains(err.Error(), "stopped after"):
		result.Outcome = model.OutcomeProtocolError
	default:
		result.Outcome = model.OutcomeNetworkError
	}
	return result
}

// isTimeoutError はnet.ErrorのTimeoutを判定する。
func isTimeoutError(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
