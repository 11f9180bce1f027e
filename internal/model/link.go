package model

import "time"

// LinkStatus はリンクの検証ライフサイクル状態を表す。
// staleは保存される状態ではなく、EffectiveStatusが導出する読み取り時ラベル。
type LinkStatus string

const (
	// LinkStatusUnchecked は一度も検証されていない初期状態。
	LinkStatusUnchecked LinkStatus = "unchecked"
	// LinkStatusValid は直近の検証が成功し、スコアが下限以上の状態。
	LinkStatusValid LinkStatus = "valid"
	// LinkStatusInvalid は直近の検証が失敗、またはスコアが下限未満の状態。
	LinkStatusInvalid LinkStatus = "invalid"
	// LinkStatusStale は最終検証からの経過時間が鮮度ウィンドウを超えた導出ラベル。
	// ステートマシンが書き込むことはなく、次回の検証で即座に上書きされる。
	LinkStatusStale LinkStatus = "stale"
)

// Link はチャンネルに対する1つの配信候補アドレスを表す。
// urlとsourceは収集側が作成時に設定し、それ以外のフィールドは
// 検証スケジューラ/ステートマシンだけが更新する。
type Link struct {
	ID        string
	ChannelID string
	URL       string
	Source    string

	Status              LinkStatus
	QualityScore        *int // 0-100。コンテンツ検証に一度も成功していなければnil
	ConsecutiveFailures int
	LastResponseTimeMs  *int64
	ErrorMessage        string

	LastCheckedAt *time.Time
	LastSuccessAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveStatus は読み取り時点のリンク状態を返す。
// 保存済み状態がvalid/invalidで、最終検証からfreshnessWindowを超えて
// 経過している場合にstaleを返す。uncheckedはstaleにならない。
func (l *Link) EffectiveStatus(now time.Time, freshnessWindow time.Duration) LinkStatus {
	if l.Status != LinkStatusValid && l.Status != LinkStatusInvalid {
		return l.Status
	}
	if l.LastCheckedAt == nil {
		return l.Status
	}
	if now.Sub(*l.LastCheckedAt) > freshnessWindow {
		return LinkStatusStale
	}
	return l.Status
}
