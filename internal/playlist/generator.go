package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/streamhunter/internal/repository"
)

// LinkLister は選定対象となる有効リンクの取得インターフェース。
type LinkLister interface {
	ListValidOrdered(ctx context.Context, minScore int, categories []string) ([]repository.ValidLink, error)
}

// MetricsRecorder はプレイリスト生成のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordPlaylistGenerated(channels int)
}

type noopMetrics struct{}

func (noopMetrics) RecordPlaylistGenerated(int) {}

// GeneratorConfig はプレイリスト生成の設定。
type GeneratorConfig struct {
	// OutputPath はM3Uファイルの出力先パス。
	OutputPath string
	// MinScore は出力対象とする品質スコアの下限。0なら制限なし。
	MinScore int
	// Categories は出力対象カテゴリ。空なら全カテゴリ。
	Categories []string
	// Render はM3U出力の体裁設定。
	Render RenderOptions
}

// Generator は有効リンクの選定とM3Uファイルの生成を行う。
type Generator struct {
	links   LinkLister
	metrics MetricsRecorder
	logger  *slog.Logger
	config  GeneratorConfig
}

// NewGenerator はGeneratorを生成する。metricsがnilの場合は記録しない。
func NewGenerator(links LinkLister, metrics MetricsRecorder, logger *slog.Logger, config GeneratorConfig) *Generator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Generator{
		links:   links,
		metrics: metrics,
		logger:  logger,
		config:  config,
	}
}

// GenerateResult はプレイリスト生成の結果。
type GenerateResult struct {
	Path     string
	Channels int
	Links    int
}

// Entries は現在の有効リンクから選定結果を返す。
func (g *Generator) Entries(ctx context.Context) ([]Entry, error) {
	links, err := g.links.ListValidOrdered(ctx, g.config.MinScore, g.config.Categories)
	if err != nil {
		return nil, fmt.Errorf("有効リンクの取得に失敗しました: %w", err)
	}
	return Select(links), nil
}

// Build は選定とM3U変換を行い、内容と選定結果を返す。ファイルには書き込まない。
func (g *Generator) Build(ctx context.Context) (string, []Entry, error) {
	entries, err := g.Entries(ctx)
	if err != nil {
		return "", nil, err
	}
	return RenderM3U(entries, time.Now(), g.config.Render), entries, nil
}

// Generate はM3Uプレイリストを生成して設定されたパスに書き込む。
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	content, entries, err := g.Build(ctx)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(g.config.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}
	if err := os.WriteFile(g.config.OutputPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("プレイリストの書き込みに失敗しました: %w", err)
	}

	totalLinks := 0
	for _, entry := range entries {
		totalLinks += 1 + len(entry.Alternates)
	}

	g.metrics.RecordPlaylistGenerated(len(entries))
	g.logger.Info("プレイリストを生成しました",
		slog.String("path", g.config.OutputPath),
		slog.Int("channels", len(entries)),
		slog.Int("links", totalLinks),
	)

	return &GenerateResult{
		Path:     g.config.OutputPath,
		Channels: len(entries),
		Links:    totalLinks,
	}, nil
}
