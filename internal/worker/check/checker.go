package check

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/probe"
)

// Checker は単一リンクの二段階検証を実行する。
// フェーズ1(到達性)が失敗したらフェーズ2(コンテンツ解析)は実行しない。
// 一時的な失敗(timeout/network_error)はリトライポリシーに従い再試行する。
type Checker struct {
	prober  probe.Prober
	scoring ScoringConfig
	policy  RetryPolicy
	logger  *slog.Logger
}

// NewChecker は新しいCheckerを生成する。
func NewChecker(prober probe.Prober, scoring ScoringConfig, policy RetryPolicy, logger *slog.Logger) *Checker {
	return &Checker{
		prober:  prober,
		scoring: scoring,
		policy:  policy,
		logger:  logger,
	}
}

// CheckReport は1リンクの検証の完全な結果。
// Resultは永続化対象の検証レコード、Compositeは合成スコア、
// Attemptsは実際に行った試行回数(初回を含む)。
type CheckReport struct {
	Result    *model.CheckResult
	Composite int
	Attempts  int
}

// Check はリンクの二段階検証を実行し、最終結果を返す。
// 全体の所要時間はポリシーのTotalTimeoutで制限され、
// 超過した場合はその時点の最良の結果を返す。
func (c *Checker) Check(ctx context.Context, link *model.Link) *CheckReport {
	ctx, cancel := context.WithTimeout(ctx, c.policy.TotalTimeout)
	defer cancel()

	var report *CheckReport
	for attempt := 0; ; attempt++ {
		report = c.checkOnce(ctx, link)
		report.Attempts = attempt + 1

		if report.Result.IsSuccess() || !report.Result.Outcome.IsTransient() {
			break
		}
		// リトライ対象は到達性フェーズの一時的失敗のみ。
		// コンテンツ検証フェーズでの失敗はリトライしない
		if report.Result.CheckType != model.CheckTypeReachability {
			break
		}
		if attempt >= c.policy.MaxRetries {
			break
		}

		backoff := c.policy.CalculateBackoff(attempt)
		c.logger.Debug("一時的な失敗のためリトライします",
			slog.String("link_id", link.ID),
			slog.String("outcome", string(report.Result.Outcome)),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff))

		if !sleepContext(ctx, backoff) {
			// 総時間予算を使い切った。最後の結果をそのまま返す
			break
		}
	}

	return report
}

// checkOnce は1回分の二段階検証を実行する。
func (c *Checker) checkOnce(ctx context.Context, link *model.Link) *CheckReport {
	checkedAt := time.Now()

	reach := c.prober.ProbeReachability(ctx, link.URL)
	httpStatus := statusCodePtr(reach.StatusCode)
	if reach.Outcome != model.OutcomeSuccess {
		return &CheckReport{
			Result: &model.CheckResult{
				ID:             uuid.New().String(),
				LinkID:         link.ID,
				CheckType:      model.CheckTypeReachability,
				Outcome:        reach.Outcome,
				HTTPStatus:     httpStatus,
				ResponseTimeMs: reach.ResponseTimeMs,
				ErrorMessage:   reach.ErrorMessage,
				CheckedAt:      checkedAt,
			},
		}
	}

	content := c.prober.ProbeContent(ctx, link.URL)
	result := &model.CheckResult{
		ID:             uuid.New().String(),
		LinkID:         link.ID,
		CheckType:      model.CheckTypeContent,
		Outcome:        content.Outcome,
		HTTPStatus:     httpStatus,
		ResponseTimeMs: reach.ResponseTimeMs,
		Metrics:        content.Metrics,
		ErrorMessage:   content.ErrorMessage,
		CheckedAt:      checkedAt,
	}

	report := &CheckReport{Result: result}
	if result.IsSuccess() {
		report.Composite = c.scoring.Composite(result, link.ConsecutiveFailures)
	}
	return report
}

// statusCodePtr はHTTPステータスコードをnullableに変換する。
// リクエスト自体が失敗した場合(コード0)はnilを返す。
func statusCodePtr(code int) *int {
	if code == 0 {
		return nil
	}
	return &code
}

// sleepContext はコンテキストを尊重してスリープする。
// 完走したらtrue、コンテキストが先にキャンセルされたらfalseを返す。
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
