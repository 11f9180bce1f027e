package check

import "time"

const (
	// defaultBackoffBase は指数バックオフの初回遅延。
	defaultBackoffBase = 500 * time.Millisecond
	// defaultBackoffCap は指数バックオフの最大遅延。
	defaultBackoffCap = 4 * time.Second
	// defaultMaxRetries は一時的失敗のリトライ上限。
	defaultMaxRetries = 2
	// defaultTotalTimeout は1リンクあたりの合計デッドライン。
	// フェーズごとのタイムアウトとリトライのバックオフをすべて含む。
	defaultTotalTimeout = 15 * time.Second
)

// RetryPolicy は同一検証内のリトライ戦略を保持する。
// リトライ対象はtimeout/network_errorのみ。
// protocol_error/probe_error/unsupported_formatは一時的な失敗ではないため
// リトライしない（model.CheckOutcome.IsTransientを参照）。
type RetryPolicy struct {
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	TotalTimeout time.Duration
}

// DefaultRetryPolicy はデフォルトのリトライ戦略を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   defaultMaxRetries,
		BackoffBase:  defaultBackoffBase,
		BackoffCap:   defaultBackoffCap,
		TotalTimeout: defaultTotalTimeout,
	}
}

// CalculateBackoff はリトライ回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大4秒。
func (p RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	delay := p.BackoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > p.BackoffCap {
			return p.BackoffCap
		}
	}
	if delay > p.BackoffCap {
		return p.BackoffCap
	}
	return delay
}
