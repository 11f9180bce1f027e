package check

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/repository"
)

// MetricsRecorder は検証実行のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	// RecordCheck は1リンクの検証完了を記録する。
	RecordCheck(outcome model.CheckOutcome, durationMs int64)
	// RecordHTTPStatus は到達性プローブのHTTPステータスコードを記録する。
	RecordHTTPStatus(statusCode int)
	// SetLinkCounts はステータスごとのリンク数を記録する。
	SetLinkCounts(counts map[model.LinkStatus]int)
}

// noopMetrics はメトリクス未設定時に使うダミー実装。
type noopMetrics struct{}

func (noopMetrics) RecordCheck(model.CheckOutcome, int64)  {}
func (noopMetrics) RecordHTTPStatus(int)                   {}
func (noopMetrics) SetLinkCounts(map[model.LinkStatus]int) {}

// SchedulerConfig は検証スケジューラの設定。
type SchedulerConfig struct {
	// MaxConcurrent は同時に実行する検証の上限。
	MaxConcurrent int
	// BatchSize は1回の実行で取得するリンク数の上限。
	BatchSize int
	// RecheckInterval はこの時間より古い検証結果を持つリンクを再検証対象にする。
	RecheckInterval time.Duration
	// TickInterval は常駐モードでの実行間隔。
	TickInterval time.Duration
}

// Scheduler は検証対象リンクの選定と並列実行を管理する。
// 同時実行数はセマフォで制限され、1リンクの検証が1スロットを占有する。
type Scheduler struct {
	links     repository.LinkRepository
	results   repository.CheckResultRepository
	checker   *Checker
	lifecycle LifecycleConfig
	metrics   MetricsRecorder
	logger    *slog.Logger
	config    SchedulerConfig
}

// NewScheduler は新しいSchedulerを生成する。metricsがnilの場合は記録しない。
func NewScheduler(
	links repository.LinkRepository,
	results repository.CheckResultRepository,
	checker *Checker,
	lifecycle LifecycleConfig,
	metrics MetricsRecorder,
	logger *slog.Logger,
	config SchedulerConfig,
) *Scheduler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Scheduler{
		links:     links,
		results:   results,
		checker:   checker,
		lifecycle: lifecycle,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// RunSummary は1回の検証実行の集計結果。
type RunSummary struct {
	// Checked は検証を完了したリンク数。
	Checked int
	// Valid は検証の結果validになったリンク数。
	Valid int
	// Invalid は検証の結果invalidになったリンク数。
	Invalid int
	// ErroredByOutcome は失敗した検証のoutcome別の件数。
	ErroredByOutcome map[model.CheckOutcome]int
	// WriteErrors は結果の永続化に失敗したリンク数。
	// 1リンクの書き込み失敗が実行全体を止めることはない。
	WriteErrors int
	// Duration は実行全体の所要時間。
	Duration time.Duration
}

// RunOnce は検証対象のリンクを1バッチ取得して検証する。
// コンテキストがキャンセルされた場合、開始済みの検証は完了させ、
// 未開始のリンクはスキップして途中までの集計を返す。
func (s *Scheduler) RunOnce(ctx context.Context) (*RunSummary, error) {
	olderThan := time.Now().Add(-s.config.RecheckInterval)
	links, err := s.links.ListDueForCheck(ctx, olderThan, s.config.BatchSize)
	if err != nil {
		return nil, err
	}

	s.logger.Info("検証バッチを開始します",
		slog.Int("link_count", len(links)),
		slog.Int("max_concurrent", s.config.MaxConcurrent))

	summary := s.CheckBatch(ctx, links)

	s.logger.Info("検証バッチが完了しました",
		slog.Int("checked", summary.Checked),
		slog.Int("valid", summary.Valid),
		slog.Int("invalid", summary.Invalid),
		slog.Int("write_errors", summary.WriteErrors),
		slog.Duration("duration", summary.Duration))

	if counts, err := s.links.CountByStatus(ctx); err == nil {
		s.metrics.SetLinkCounts(counts)
	}

	return summary, nil
}

// CheckBatch は指定されたリンク群を並列に検証する。
// 同時実行数はMaxConcurrentで制限される。
func (s *Scheduler) CheckBatch(ctx context.Context, links []*model.Link) *RunSummary {
	start := time.Now()
	summary := &RunSummary{
		ErroredByOutcome: make(map[model.CheckOutcome]int),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.config.MaxConcurrent)

	for i, link := range links {
		// キャンセル済みなら残りのリンクは開始しない
		select {
		case <-ctx.Done():
			s.logger.Warn("キャンセルにより残りの検証をスキップします",
				slog.Int("remaining", len(links)-i))
			wg.Wait()
			summary.Duration = time.Since(start)
			return summary
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(link *model.Link) {
			defer wg.Done()
			defer func() { <-sem }()

			report := s.checkLink(ctx, link)

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			switch {
			case report.writeErr:
				summary.WriteErrors++
			case link.Status == model.LinkStatusValid:
				summary.Valid++
			default:
				summary.Invalid++
			}
			if !report.success {
				summary.ErroredByOutcome[report.outcome]++
			}
		}(link)
	}

	wg.Wait()
	summary.Duration = time.Since(start)
	return summary
}

type linkOutcome struct {
	success  bool
	outcome  model.CheckOutcome
	writeErr bool
}

// checkLink は1リンクの検証を実行し、結果を永続化する。
func (s *Scheduler) checkLink(ctx context.Context, link *model.Link) linkOutcome {
	report := s.checker.Check(ctx, link)
	result := report.Result

	ApplyCheck(link, result, report.Composite, s.lifecycle)
	s.metrics.RecordCheck(result.Outcome, result.ResponseTimeMs)
	if result.HTTPStatus != nil {
		s.metrics.RecordHTTPStatus(*result.HTTPStatus)
	}

	out := linkOutcome{
		success: result.IsSuccess(),
		outcome: result.Outcome,
	}

	if result.IsSuccess() {
		s.logger.Info("リンクの検証に成功しました",
			slog.String("link_id", link.ID),
			slog.String("url", link.URL),
			slog.Int("composite_score", report.Composite),
			slog.Int("attempts", report.Attempts),
			slog.Int64("response_time_ms", result.ResponseTimeMs))
	} else {
		s.logger.Warn("リンクの検証に失敗しました",
			slog.String("link_id", link.ID),
			slog.String("url", link.URL),
			slog.String("outcome", string(result.Outcome)),
			slog.Int("attempts", report.Attempts),
			slog.Int("consecutive_failures", link.ConsecutiveFailures),
			slog.String("error", result.ErrorMessage))
	}

	// 永続化は検証より長いデッドラインを許す。検証のキャンセルで
	// 完了済みの結果の書き込みまで失われないようにする
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.results.Append(writeCtx, result); err != nil {
		s.logger.Error("検証結果の保存に失敗しました",
			slog.String("link_id", link.ID),
			slog.String("error", err.Error()))
		out.writeErr = true
		return out
	}
	if err := s.links.UpdateCheckState(writeCtx, link); err != nil {
		s.logger.Error("リンク状態の更新に失敗しました",
			slog.String("link_id", link.ID),
			slog.String("error", err.Error()))
		out.writeErr = true
		return out
	}
	return out
}

// Start は常駐モードで定期的に検証バッチを実行する。
// 起動直後に1回実行し、以降はTickIntervalごとに実行する。
// コンテキストのキャンセルで停止する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("検証スケジューラを起動します",
		slog.Duration("tick_interval", s.config.TickInterval))

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("検証バッチの実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("検証スケジューラを停止します")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("検証バッチの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
