package playlist

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/streamhunter/internal/repository"
)

type stubLister struct {
	links      []repository.ValidLink
	err        error
	minScore   int
	categories []string
}

func (s *stubLister) ListValidOrdered(ctx context.Context, minScore int, categories []string) ([]repository.ValidLink, error) {
	s.minScore = minScore
	s.categories = categories
	return s.links, s.err
}

type recordingMetrics struct {
	channels []int
}

func (m *recordingMetrics) RecordPlaylistGenerated(channels int) {
	m.channels = append(m.channels, channels)
}

func newGeneratorLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestGenerator_Generate_WritesFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "playlists", "live.m3u")
	lister := &stubLister{links: []repository.ValidLink{
		validLink("ch1", "CCTV1", "央视", 9, 95, "http://example.com/best.m3u8"),
		validLink("ch1", "CCTV1", "央视", 9, 80, "http://example.com/alt.m3u8"),
	}}

	gen := NewGenerator(lister, nil, newGeneratorLogger(), GeneratorConfig{
		OutputPath: outputPath,
		Render:     DefaultRenderOptions(),
	})

	result, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Channels != 1 {
		t.Errorf("Channels = %d, want 1", result.Channels)
	}
	if result.Links != 2 {
		t.Errorf("Links = %d, want 2", result.Links)
	}
	if result.Path != outputPath {
		t.Errorf("Path = %s, want %s", result.Path, outputPath)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("出力ファイルの読み込みに失敗: %v", err)
	}
	if !strings.HasPrefix(string(content), "#EXTM3U\n") {
		t.Errorf("出力ファイルがM3U形式ではない:\n%s", content)
	}
	if !strings.Contains(string(content), "http://example.com/best.m3u8") {
		t.Errorf("最良リンクが出力されていない:\n%s", content)
	}
}

func TestGenerator_Generate_PassesFilters(t *testing.T) {
	lister := &stubLister{}
	gen := NewGenerator(lister, nil, newGeneratorLogger(), GeneratorConfig{
		OutputPath: filepath.Join(t.TempDir(), "live.m3u"),
		MinScore:   60,
		Categories: []string{"央视", "卫视"},
		Render:     DefaultRenderOptions(),
	})

	if _, err := gen.Generate(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if lister.minScore != 60 {
		t.Errorf("minScore = %d, want 60", lister.minScore)
	}
	if len(lister.categories) != 2 {
		t.Errorf("categories = %v, want 2件", lister.categories)
	}
}

func TestGenerator_Generate_RecordsMetrics(t *testing.T) {
	lister := &stubLister{links: []repository.ValidLink{
		validLink("ch1", "CCTV1", "央视", 9, 95, "http://example.com/a.m3u8"),
		validLink("ch2", "CCTV2", "央视", 8, 90, "http://example.com/b.m3u8"),
	}}
	metrics := &recordingMetrics{}
	gen := NewGenerator(lister, metrics, newGeneratorLogger(), GeneratorConfig{
		OutputPath: filepath.Join(t.TempDir(), "live.m3u"),
		Render:     DefaultRenderOptions(),
	})

	if _, err := gen.Generate(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(metrics.channels) != 1 || metrics.channels[0] != 2 {
		t.Errorf("メトリクス記録 = %v, want [2]", metrics.channels)
	}
}

func TestGenerator_Generate_ListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	gen := NewGenerator(lister, nil, newGeneratorLogger(), GeneratorConfig{
		OutputPath: filepath.Join(t.TempDir(), "live.m3u"),
		Render:     DefaultRenderOptions(),
	})

	if _, err := gen.Generate(context.Background()); err == nil {
		t.Error("リポジトリエラー時にエラーが返らなかった")
	}
}
