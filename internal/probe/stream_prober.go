package probe

import (
	"context"
)

// StreamProber はHTTP到達性検証とffprobe内容検証を束ねた
// Proberインターフェースの具象実装。
type StreamProber struct {
	http    *HTTPProber
	ffprobe *FFprobeProber
}

// NewStreamProber はStreamProberを生成する。
func NewStreamProber(http *HTTPProber, ffprobe *FFprobeProber) *StreamProber {
	return &StreamProber{
		http:    http,
		ffprobe: ffprobe,
	}
}

// Verify は外部アナライザが利用可能であることを確認する。
// 検証実行前に一度だけ呼び出す。
func (s *StreamProber) Verify() error {
	return s.ffprobe.Verify()
}

// ProbeReachability はProberインターフェースを実装する。
func (s *StreamProber) ProbeReachability(ctx context.Context, url string) ReachabilityResult {
	return s.http.ProbeReachability(ctx, url)
}

// ProbeContent はProberインターフェースを実装する。
func (s *StreamProber) ProbeContent(ctx context.Context, url string) ContentResult {
	return s.ffprobe.ProbeContent(ctx, url)
}
