package check

import (
	"math"

	"github.com/hitoshi/streamhunter/internal/model"
)

// ScoringConfig は品質スコアの重みと閾値を保持する。
// 構築時に渡すイミュータブルな設定であり、グローバル状態からは読まない。
// デフォルト値は変更しないこと。重みを調整する場合も各サブスコアに対する
// 単調性は維持する必要がある。
type ScoringConfig struct {
	// 合成スコアの重み。合計1.0
	VideoWeight     float64
	AudioWeight     float64
	StabilityWeight float64
	LatencyWeight   float64

	// videoScore内の解像度/フレームレートの配分
	ResolutionBlend float64
	FrameRateBlend  float64

	// audioScore内のサンプルレート/チャンネル数の配分
	SampleRateBlend float64
	ChannelBlend    float64

	// stabilityScore: 連続失敗1回あたりの減点
	FailurePenalty float64

	// latencyScore: 応答時間の除数（ms）。100 - responseTimeMs/divisor
	LatencyDivisor float64
}

// DefaultScoringConfig はデフォルトのスコア設定を返す。
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		VideoWeight:     0.40,
		AudioWeight:     0.20,
		StabilityWeight: 0.25,
		LatencyWeight:   0.15,
		ResolutionBlend: 0.70,
		FrameRateBlend:  0.30,
		SampleRateBlend: 0.60,
		ChannelBlend:    0.40,
		FailurePenalty:  25,
		LatencyDivisor:  20,
	}
}

// VideoScore は解像度とフレームレートから映像サブスコア [0,100] を計算する。
// 解像度の段階評価を70%、フレームレートの段階評価を30%で合成する。
func (c ScoringConfig) VideoScore(m *model.StreamMetrics) float64 {
	var resolution, frameRate float64

	height := 0
	fps := 0.0
	if m != nil {
		height = m.Height
		fps = m.FrameRate
	}

	switch {
	case height >= 1080:
		resolution = 100
	case height >= 720:
		resolution = 80
	case height >= 480:
		resolution = 60
	case height >= 360:
		resolution = 40
	default:
		resolution = 20
	}

	switch {
	case fps >= 50:
		frameRate = 100
	case fps >= 25:
		frameRate = 70
	default:
		frameRate = 40
	}

	return c.ResolutionBlend*resolution + c.FrameRateBlend*frameRate
}

// AudioScore はサンプルレートとチャンネル数から音声サブスコア [0,100] を計算する。
// サンプルレートの段階評価を60%、チャンネル数の段階評価を40%で合成する。
func (c ScoringConfig) AudioScore(m *model.StreamMetrics) float64 {
	var sampleRate, channels float64

	rate := 0
	ch := 0
	if m != nil {
		rate = m.SampleRate
		ch = m.AudioChannels
	}

	switch {
	case rate >= 48000:
		sampleRate = 100
	case rate >= 44100:
		sampleRate = 90
	case rate >= 32000:
		sampleRate = 70
	default:
		sampleRate = 40
	}

	switch {
	case ch >= 2:
		channels = 100
	case ch == 1:
		channels = 60
	default:
		channels = 0
	}

	return c.SampleRateBlend*sampleRate + c.ChannelBlend*channels
}

// StabilityScore は検証時点の連続失敗回数から安定性サブスコア [0,100] を計算する。
// 直近の履歴が良好なリンクは検証完了前でも100近くになり、
// 失敗が続くほど低下する。
func (c ScoringConfig) StabilityScore(consecutiveFailures int) float64 {
	return math.Max(0, 100-c.FailurePenalty*float64(consecutiveFailures))
}

// LatencyScore は到達性フェーズの応答時間からレイテンシサブスコア [0,100] を計算する。
// 0msで100、2000msで0になり、それ以上は0にクランプされる。
func (c ScoringConfig) LatencyScore(responseTimeMs int64) float64 {
	return math.Max(0, 100-float64(responseTimeMs)/c.LatencyDivisor)
}

// Composite は検証結果と検証時点の連続失敗回数から合成スコア [0,100] を計算する。
// 結果がsuccessでない場合は、過去の成功時のメトリクスに関係なく常に0を返す。
// 保存済みスコアを保持するか破棄するかはステートマシンが決定する。
func (c ScoringConfig) Composite(result *model.CheckResult, consecutiveFailures int) int {
	if !result.IsSuccess() {
		return 0
	}

	video := c.VideoScore(result.Metrics)
	audio := c.AudioScore(result.Metrics)
	stability := c.StabilityScore(consecutiveFailures)
	latency := c.LatencyScore(result.ResponseTimeMs)

	composite := c.VideoWeight*video +
		c.AudioWeight*audio +
		c.StabilityWeight*stability +
		c.LatencyWeight*latency

	rounded := int(math.Round(composite))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
