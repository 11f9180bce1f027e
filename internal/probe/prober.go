// Package probe はリンク検証のための外部プローブ機能を提供する。
// HTTPによる到達性検証と、ffprobeサブプロセスによるストリーム内容検証の
// 2つのアダプタを含む。どちらも想定内の失敗ではエラーを返さず、
// 常に結果値を返す。
package probe

import (
	"context"

	"github.com/hitoshi/streamhunter/internal/model"
)

// ReachabilityResult は到達性検証の結果を表す。
type ReachabilityResult struct {
	Outcome        model.CheckOutcome
	StatusCode     int   // HTTPステータスコード。リクエスト自体が失敗した場合は0
	ResponseTimeMs int64 // リクエスト開始から応答までの時間
	ErrorMessage   string
}

// ContentResult はストリーム内容検証の結果を表す。
type ContentResult struct {
	Outcome      model.CheckOutcome
	Metrics      *model.StreamMetrics // 成功時のみ存在する
	ErrorMessage string
}

// Prober はリンク検証の2フェーズのプローブ機能を抽象化する。
// オーケストレータはこのインターフェースにのみ依存し、
// バックエンドごとに1つの具象実装を持つ。
type Prober interface {
	// ProbeReachability は軽量なHTTP到達性検証を実行する。
	ProbeReachability(ctx context.Context, url string) ReachabilityResult

	// ProbeContent はストリームをデコードして品質指標を取得する。
	ProbeContent(ctx context.Context, url string) ContentResult
}
