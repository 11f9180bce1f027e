package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

// FFprobeProber はffprobeサブプロセスによるストリーム内容検証のアダプタ。
// URLとウォールクロックタイムアウトを指定してffprobeを起動し、
// JSON出力をStreamMetricsに解析する。
type FFprobeProber struct {
	path    string
	logger  *slog.Logger
	timeout time.Duration
}

// NewFFprobeProber はFFprobeProberを生成する。
// pathにはffprobe実行ファイルのパスを指定する（PATH上の名前でも可）。
func NewFFprobeProber(path string, logger *slog.Logger, timeout time.Duration) *FFprobeProber {
	return &FFprobeProber{
		path:    path,
		logger:  logger,
		timeout: timeout,
	}
}

// Verify はffprobe実行ファイルが存在することを確認する。
// 検証実行前に一度だけ呼び出し、見つからない場合は致命的エラーとして扱う。
// チェックごとの検出は行わない。
func (p *FFprobeProber) Verify() error {
	if _, err := exec.LookPath(p.path); err != nil {
		return model.NewProberUnavailableError(p.path, err)
	}
	return nil
}

// ffprobeOutput はffprobeのJSON出力の解析対象部分。
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	BitRate  string `json:"bit_rate"`
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// ProbeContent はffprobeでストリームをデコードし、品質指標を取得する。
// 非ゼロ終了や出力の解析失敗はprobe_error、正常終了だが
// デコード可能な音声・映像ストリームが存在しない場合はunsupported_formatに
// 分類する。想定内の失敗ではエラーを返さず、常に結果値を返す。
func (p *FFprobeProber) ProbeContent(ctx context.Context, url string) ContentResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// 分析時間と探測サイズを5秒/5MBに制限し、ライブストリームでも
	// 有限時間で結果を得る
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-analyzeduration", "5000000",
		"-probesize", "5000000",
		url,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ContentResult{
				Outcome:      model.OutcomeTimeout,
				ErrorMessage: "ffprobeの実行がタイムアウトしました",
			}
		}

		msg := stderr.String()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg == "" {
			msg = string(exitErr.Stderr)
		}
		if msg == "" {
			msg = err.Error()
		}
		return ContentResult{
			Outcome:      model.OutcomeProbeError,
			ErrorMessage: fmt.Sprintf("ffprobeの実行に失敗: %s", strings.TrimSpace(msg)),
		}
	}

	return p.parseOutput(output)
}

// parseOutput はffprobeのJSON出力をContentResultに解析する。
func (p *FFprobeProber) parseOutput(output []byte) ContentResult {
	var probed ffprobeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return ContentResult{
			Outcome:      model.OutcomeProbeError,
			ErrorMessage: fmt.Sprintf("ffprobe出力の解析に失敗: %s", err.Error()),
		}
	}

	var video, audio *ffprobeStream
	for i := range probed.Streams {
		s := &probed.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	// デコード可能な音声・映像ストリームが存在しない
	if video == nil && audio == nil {
		return ContentResult{
			Outcome:      model.OutcomeUnsupportedFormat,
			ErrorMessage: "デコード可能な音声・映像ストリームが見つかりません",
		}
	}

	metrics := &model.StreamMetrics{}

	if video != nil {
		metrics.Width = video.Width
		metrics.Height = video.Height
		metrics.FrameRate = parseFrameRate(video.RFrameRate)
		metrics.VideoCodec = video.CodecName
	}
	if audio != nil {
		if rate, err := strconv.Atoi(audio.SampleRate); err == nil {
			metrics.SampleRate = rate
		}
		metrics.AudioChannels = audio.Channels
		metrics.AudioCodec = audio.CodecName
	}
	if bitrate, err := strconv.ParseInt(probed.Format.BitRate, 10, 64); err == nil {
		metrics.BitRate = bitrate
	}

	return ContentResult{
		Outcome: model.OutcomeSuccess,
		Metrics: metrics,
	}
}

// parseFrameRate はffprobeのr_frame_rate（"30000/1001"形式の分数）を
// 実数のフレームレートに変換する。解析できない場合は0を返す。
func parseFrameRate(raw string) float64 {
	if raw == "" {
		return 0
	}

	parts := strings.SplitN(raw, "/", 2)
	if len(parts) == 1 {
		fps, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		return fps
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
