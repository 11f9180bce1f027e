package check

import (
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

const (
	// defaultMinValidScore はvalidと判定する合成スコアの下限。
	defaultMinValidScore = 1
	// defaultStaleRetention は失敗時に旧スコアを保持する連続失敗回数の上限。
	// 一時的な失敗1回で実績のあるリンクのスコアが消えるフラッピングを防ぐ。
	defaultStaleRetention = 2
)

// LifecycleConfig はリンクのライフサイクル遷移の設定を保持する。
type LifecycleConfig struct {
	// MinValidScore は成功した検証をvalidと判定する合成スコアの下限。
	MinValidScore int
	// StaleRetention は失敗時に旧qualityScoreを保持する連続失敗回数の上限。
	// この回数を超えるとスコアは0になる。
	StaleRetention int
}

// DefaultLifecycleConfig はデフォルトのライフサイクル設定を返す。
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		MinValidScore:  defaultMinValidScore,
		StaleRetention: defaultStaleRetention,
	}
}

// ApplyCheck は完了した検証結果をリンクに適用し、状態遷移を行う。
// 純粋な状態遷移関数であり、I/Oは行わない。
//
// 成功時: 連続失敗回数を0にリセットし、qualityScore = composite、
// lastResponseTimeMsを更新する。composite >= MinValidScoreならvalid、
// 未満ならinvalidに遷移する。
//
// 失敗時: 連続失敗回数をインクリメントし、invalidに遷移する。
// qualityScoreは連続失敗がStaleRetention以下の間は直前の値を保持し、
// 超えた時点で0になる。新しく計算された正のスコアが書き込まれることはない。
//
// 終端状態は存在しない。リンクは実行をまたいでvalid↔invalidを
// 何度でも遷移できる。staleはステートマシンが書き込む値ではなく、
// Link.EffectiveStatusが導出する読み取り時ラベル。
func ApplyCheck(link *model.Link, result *model.CheckResult, composite int, cfg LifecycleConfig) {
	checkedAt := result.CheckedAt
	link.LastCheckedAt = &checkedAt
	link.UpdatedAt = time.Now()

	if result.IsSuccess() {
		link.ConsecutiveFailures = 0
		score := composite
		link.QualityScore = &score
		responseTime := result.ResponseTimeMs
		link.LastResponseTimeMs = &responseTime
		link.LastSuccessAt = &checkedAt
		link.ErrorMessage = ""

		if composite >= cfg.MinValidScore {
			link.Status = model.LinkStatusValid
		} else {
			link.Status = model.LinkStatusInvalid
		}
		return
	}

	link.ConsecutiveFailures++
	link.Status = model.LinkStatusInvalid
	link.ErrorMessage = result.ErrorMessage

	// 失敗ストリークが保持上限を超えたら保存済みスコアを0にする
	if link.ConsecutiveFailures > cfg.StaleRetention && link.QualityScore != nil {
		zero := 0
		link.QualityScore = &zero
	}
}
