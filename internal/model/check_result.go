package model

import (
	"fmt"
	"time"
)

// CheckType は検証フェーズの種別を表す。
type CheckType string

const (
	// CheckTypeReachability は軽量なHTTP到達性検証。
	CheckTypeReachability CheckType = "reachability"
	// CheckTypeContent はffprobeによるストリーム内容検証。
	CheckTypeContent CheckType = "content"
)

// CheckOutcome は1回の検証試行の結果分類を表す。
type CheckOutcome string

const (
	// OutcomeSuccess は検証成功。
	OutcomeSuccess CheckOutcome = "success"
	// OutcomeTimeout はタイムアウトによる失敗。
	OutcomeTimeout CheckOutcome = "timeout"
	// OutcomeNetworkError はネットワークエラー（HTTP 4xx/5xxを含む）。
	OutcomeNetworkError CheckOutcome = "network_error"
	// OutcomeProtocolError はプロトコル違反による失敗。
	OutcomeProtocolError CheckOutcome = "protocol_error"
	// OutcomeProbeError は外部アナライザのクラッシュまたは出力解析失敗。
	OutcomeProbeError CheckOutcome = "probe_error"
	// OutcomeUnsupportedFormat はアナライザは成功したが
	// デコード可能な音声・映像ストリームが存在しない状態。
	OutcomeUnsupportedFormat CheckOutcome = "unsupported_format"
)

// IsTransient は同一検証内でリトライ対象となる結果かを返す。
// timeoutとnetwork_errorのみ一時的な失敗として扱う。
// protocol_error/probe_error/unsupported_formatはリトライしても
// 結果が変わらないため対象外。
func (o CheckOutcome) IsTransient() bool {
	return o == OutcomeTimeout || o == OutcomeNetworkError
}

// StreamMetrics はコンテンツ検証で取得したストリーム品質指標。
// コンテンツ検証が成功した場合のみ存在する。
type StreamMetrics struct {
	Width         int
	Height        int
	FrameRate     float64
	BitRate       int64
	SampleRate    int
	AudioChannels int
	VideoCodec    string
	AudioCodec    string
}

// Resolution は"1920x1080"形式の解像度文字列を返す。
// 映像ストリームが存在しない場合は空文字列を返す。
func (m *StreamMetrics) Resolution() string {
	if m == nil || m.Width == 0 || m.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// CheckResult は1リンクに対する1回の検証結果を表す。
// 作成後は不変であり、履歴として追記のみ行う。
type CheckResult struct {
	ID     string
	LinkID string

	CheckType CheckType
	Outcome   CheckOutcome

	HTTPStatus     *int
	ResponseTimeMs int64 // 到達性フェーズの応答時間。フェーズ2の結果でも保持する
	Metrics        *StreamMetrics
	ErrorMessage   string

	CheckedAt time.Time
}

// IsSuccess は検証が成功したかを返す。
func (r *CheckResult) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess
}
