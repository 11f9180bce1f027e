package check

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/probe"
)

// stubProber はテスト用のProber実装。並列実行されるため呼び出し回数はatomicで数える。
type stubProber struct {
	reachabilityFunc func(ctx context.Context, url string) probe.ReachabilityResult
	contentFunc      func(ctx context.Context, url string) probe.ContentResult

	reachabilityCalls atomic.Int64
	contentCalls      atomic.Int64
}

func (s *stubProber) ProbeReachability(ctx context.Context, url string) probe.ReachabilityResult {
	s.reachabilityCalls.Add(1)
	if s.reachabilityFunc != nil {
		return s.reachabilityFunc(ctx, url)
	}
	return probe.ReachabilityResult{Outcome: model.OutcomeSuccess, StatusCode: 200, ResponseTimeMs: 50}
}

func (s *stubProber) ProbeContent(ctx context.Context, url string) probe.ContentResult {
	s.contentCalls.Add(1)
	if s.contentFunc != nil {
		return s.contentFunc(ctx, url)
	}
	return probe.ContentResult{
		Outcome: model.OutcomeSuccess,
		Metrics: &model.StreamMetrics{Height: 1080, FrameRate: 50, SampleRate: 48000, AudioChannels: 2},
	}
}

func newCheckerLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// fastRetryPolicy はテストを遅くしないための短いバックオフ設定。
func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		BackoffBase:  time.Millisecond,
		BackoffCap:   4 * time.Millisecond,
		TotalTimeout: time.Second,
	}
}

func TestChecker_Check_SuccessBothPhases(t *testing.T) {
	prober := &stubProber{}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeSuccess {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	if report.Result.CheckType != model.CheckTypeContent {
		t.Errorf("成功時のcheckTypeはcontentであるべきです: got %s", report.Result.CheckType)
	}
	if report.Result.Metrics == nil {
		t.Fatal("成功時はメトリクスが存在するべきです")
	}
	if report.Result.ResponseTimeMs != 50 {
		t.Errorf("到達性フェーズの応答時間が保持されるべきです: got %d", report.Result.ResponseTimeMs)
	}
	if report.Result.HTTPStatus == nil || *report.Result.HTTPStatus != 200 {
		t.Errorf("HTTPステータスが保持されるべきです: got %v", report.Result.HTTPStatus)
	}
	if report.Composite <= 0 {
		t.Errorf("成功時の合成スコアは正であるべきです: got %d", report.Composite)
	}
	if report.Attempts != 1 {
		t.Errorf("成功時の試行回数は1であるべきです: got %d", report.Attempts)
	}
}

func TestChecker_Check_ReachabilityFailure_SkipsContentPhase(t *testing.T) {
	prober := &stubProber{
		reachabilityFunc: func(ctx context.Context, url string) probe.ReachabilityResult {
			return probe.ReachabilityResult{
				Outcome:      model.OutcomeProtocolError,
				ErrorMessage: "リダイレクト回数が上限を超えました",
			}
		},
	}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeProtocolError {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	if report.Result.CheckType != model.CheckTypeReachability {
		t.Errorf("フェーズ1失敗時のcheckTypeはreachabilityであるべきです: got %s", report.Result.CheckType)
	}
	if prober.contentCalls.Load() != 0 {
		t.Errorf("フェーズ1失敗時はフェーズ2を実行してはいけません: calls=%d", prober.contentCalls.Load())
	}
	if report.Composite != 0 {
		t.Errorf("失敗時の合成スコアは0であるべきです: got %d", report.Composite)
	}
}

func TestChecker_Check_TransientFailure_Retries(t *testing.T) {
	attempts := 0
	prober := &stubProber{
		reachabilityFunc: func(ctx context.Context, url string) probe.ReachabilityResult {
			attempts++
			if attempts < 3 {
				return probe.ReachabilityResult{Outcome: model.OutcomeTimeout, ErrorMessage: "タイムアウト"}
			}
			return probe.ReachabilityResult{Outcome: model.OutcomeSuccess, StatusCode: 200, ResponseTimeMs: 80}
		},
	}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeSuccess {
		t.Errorf("リトライ後に成功するべきです: got %s", report.Result.Outcome)
	}
	if report.Attempts != 3 {
		t.Errorf("試行回数が一致しません: got %d", report.Attempts)
	}
}

func TestChecker_Check_TransientFailure_ExhaustsRetries(t *testing.T) {
	prober := &stubProber{
		reachabilityFunc: func(ctx context.Context, url string) probe.ReachabilityResult {
			return probe.ReachabilityResult{Outcome: model.OutcomeNetworkError, ErrorMessage: "接続拒否"}
		},
	}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeNetworkError {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	// 初回 + リトライ2回
	if prober.reachabilityCalls.Load() != 3 {
		t.Errorf("リトライ上限まで試行するべきです: calls=%d", prober.reachabilityCalls.Load())
	}
}

func TestChecker_Check_NonTransientFailure_DoesNotRetry(t *testing.T) {
	prober := &stubProber{
		contentFunc: func(ctx context.Context, url string) probe.ContentResult {
			return probe.ContentResult{Outcome: model.OutcomeUnsupportedFormat, ErrorMessage: "メディアストリームがありません"}
		},
	}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeUnsupportedFormat {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	if prober.reachabilityCalls.Load() != 1 || prober.contentCalls.Load() != 1 {
		t.Errorf("恒久的な失敗はリトライしてはいけません: reach=%d content=%d",
			prober.reachabilityCalls.Load(), prober.contentCalls.Load())
	}
}

func TestChecker_Check_ContentPhaseTimeout_DoesNotRetry(t *testing.T) {
	prober := &stubProber{
		contentFunc: func(ctx context.Context, url string) probe.ContentResult {
			return probe.ContentResult{Outcome: model.OutcomeTimeout, ErrorMessage: "ffprobeがタイムアウトしました"}
		},
	}
	checker := NewChecker(prober, DefaultScoringConfig(), fastRetryPolicy(), newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	report := checker.Check(context.Background(), link)

	if report.Result.Outcome != model.OutcomeTimeout {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	if report.Result.CheckType != model.CheckTypeContent {
		t.Errorf("checkTypeはcontentであるべきです: got %s", report.Result.CheckType)
	}
	if report.Attempts != 1 {
		t.Errorf("コンテンツフェーズの失敗はリトライしてはいけません: attempts=%d", report.Attempts)
	}
	if prober.contentCalls.Load() != 1 {
		t.Errorf("フェーズ2は1回だけ実行されるべきです: calls=%d", prober.contentCalls.Load())
	}
}

func TestChecker_Check_TotalTimeoutStopsRetries(t *testing.T) {
	prober := &stubProber{
		reachabilityFunc: func(ctx context.Context, url string) probe.ReachabilityResult {
			return probe.ReachabilityResult{Outcome: model.OutcomeTimeout, ErrorMessage: "タイムアウト"}
		},
	}
	policy := RetryPolicy{
		MaxRetries:   5,
		BackoffBase:  100 * time.Millisecond,
		BackoffCap:   time.Second,
		TotalTimeout: 50 * time.Millisecond,
	}
	checker := NewChecker(prober, DefaultScoringConfig(), policy, newCheckerLogger())
	link := newTestLink(model.LinkStatusUnchecked)

	start := time.Now()
	report := checker.Check(context.Background(), link)
	elapsed := time.Since(start)

	if report.Result.Outcome != model.OutcomeTimeout {
		t.Errorf("outcomeが一致しません: got %s", report.Result.Outcome)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("総時間予算を大幅に超過しています: %v", elapsed)
	}
	if prober.reachabilityCalls.Load() > 2 {
		t.Errorf("予算超過後はリトライを打ち切るべきです: calls=%d", prober.reachabilityCalls.Load())
	}
}
