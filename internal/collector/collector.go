package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/streamhunter/internal/model"
	"github.com/hitoshi/streamhunter/internal/repository"
)

// MetricsRecorder は収集ジョブのメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordLinksCollected(count int)
}

type noopMetrics struct{}

func (noopMetrics) RecordLinksCollected(int) {}

// CollectorConfig は収集ジョブの設定。
type CollectorConfig struct {
	// MaxPerChannel は1チャンネルあたりの候補数の上限。
	MaxPerChannel int
	// SearchDelay は同一ソースへの連続アクセスの最小間隔。
	SearchDelay time.Duration
	// TickInterval は常駐モードでの実行間隔。
	TickInterval time.Duration
}

// Collector は有効なチャンネルの候補リンクをソース群から収集し、
// カタログへ冪等に登録する。ソースごとにレートリミッタを持ち、
// 検索サイトへの連続アクセスを抑制する。
type Collector struct {
	channels repository.ChannelRepository
	links    repository.LinkRepository
	sources  []Source
	guard    SSRFValidator
	metrics  MetricsRecorder
	logger   *slog.Logger
	config   CollectorConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCollector は新しいCollectorを生成する。metricsがnilの場合は記録しない。
func NewCollector(
	channels repository.ChannelRepository,
	links repository.LinkRepository,
	sources []Source,
	guard SSRFValidator,
	metrics MetricsRecorder,
	logger *slog.Logger,
	config CollectorConfig,
) *Collector {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Collector{
		channels: channels,
		links:    links,
		sources:  sources,
		guard:    guard,
		metrics:  metrics,
		logger:   logger,
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor はソースごとのレートリミッタを返す。初回アクセス時に生成する。
func (c *Collector) limiterFor(source string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[source]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(c.config.SearchDelay), 1)
	c.limiters[source] = l
	return l
}

// CollectChannel は1チャンネルの候補リンクを全ソースから収集して保存する。
// 戻り値は新規に登録されたリンク数。ソース単位の失敗はログに記録して
// 続行し、チャンネル全体の収集を止めない。
func (c *Collector) CollectChannel(ctx context.Context, channel *model.Channel) (int, error) {
	if len(channel.Keywords) == 0 {
		c.logger.Warn("チャンネルに検索キーワードがありません",
			slog.String("channel_id", channel.ID),
			slog.String("channel_name", channel.Name))
		return 0, nil
	}

	// URLで重複を除去しながら集める
	seen := make(map[string]Candidate)
	for _, keyword := range channel.Keywords {
		for _, source := range c.sources {
			if err := c.limiterFor(source.Name()).Wait(ctx); err != nil {
				return 0, err
			}

			candidates, err := source.Search(ctx, keyword)
			if err != nil {
				c.logger.Warn("ソースの検索に失敗しました",
					slog.String("source", source.Name()),
					slog.String("channel_name", channel.Name),
					slog.String("keyword", keyword),
					slog.String("error", err.Error()))
				continue
			}

			for _, cand := range candidates {
				if _, ok := seen[cand.URL]; ok {
					continue
				}
				seen[cand.URL] = cand
			}
		}
	}

	saved := 0
	for _, cand := range seen {
		if saved >= c.config.MaxPerChannel {
			break
		}

		// 保存前にSSRF検証を行い、内部ネットワーク宛の候補を弾く
		if err := c.guard.ValidateURL(cand.URL); err != nil {
			c.logger.Debug("SSRF検証により候補を除外しました",
				slog.String("url", cand.URL),
				slog.String("error", err.Error()))
			continue
		}

		now := time.Now()
		link := &model.Link{
			ID:        uuid.NewString(),
			ChannelID: channel.ID,
			URL:       cand.URL,
			Source:    cand.Source,
			Status:    model.LinkStatusUnchecked,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, created, err := c.links.UpsertCandidate(ctx, link)
		if err != nil {
			c.logger.Error("候補リンクの保存に失敗しました",
				slog.String("channel_id", channel.ID),
				slog.String("url", cand.URL),
				slog.String("error", err.Error()))
			continue
		}
		if created {
			saved++
		}
	}

	c.metrics.RecordLinksCollected(saved)
	c.logger.Info("チャンネルの収集が完了しました",
		slog.String("channel_id", channel.ID),
		slog.String("channel_name", channel.Name),
		slog.Int("candidate_count", len(seen)),
		slog.Int("saved_count", saved))

	return saved, nil
}

// RunOnce は有効な全チャンネルの候補リンクを収集する。
// 戻り値はチャンネル名ごとの新規登録数。
func (c *Collector) RunOnce(ctx context.Context) (map[string]int, error) {
	channels, err := c.channels.List(ctx, "", true)
	if err != nil {
		return nil, err
	}

	c.logger.Info("収集バッチを開始します",
		slog.Int("channel_count", len(channels)),
		slog.Int("source_count", len(c.sources)))

	results := make(map[string]int, len(channels))
	for _, channel := range channels {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		saved, err := c.CollectChannel(ctx, channel)
		if err != nil {
			c.logger.Error("チャンネルの収集に失敗しました",
				slog.String("channel_name", channel.Name),
				slog.String("error", err.Error()))
			results[channel.Name] = 0
			continue
		}
		results[channel.Name] = saved
	}

	total := 0
	for _, n := range results {
		total += n
	}
	c.logger.Info("収集バッチが完了しました", slog.Int("total_saved", total))

	return results, nil
}

// Start は常駐モードで定期的に収集バッチを実行する。
// 起動直後に1回実行し、以降はTickIntervalごとに実行する。
func (c *Collector) Start(ctx context.Context) {
	c.logger.Info("収集ジョブを起動します",
		slog.Duration("tick_interval", c.config.TickInterval))

	if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("収集バッチの実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("収集ジョブを停止します")
			return
		case <-ticker.C:
			if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("収集バッチの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
