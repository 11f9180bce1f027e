// Package app はアプリケーションの初期化とサブコマンドごとの起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/streamhunter/internal/channel"
	"github.com/hitoshi/streamhunter/internal/collector"
	"github.com/hitoshi/streamhunter/internal/config"
	"github.com/hitoshi/streamhunter/internal/database"
	"github.com/hitoshi/streamhunter/internal/handler"
	"github.com/hitoshi/streamhunter/internal/logger"
	"github.com/hitoshi/streamhunter/internal/metrics"
	"github.com/hitoshi/streamhunter/internal/middleware"
	"github.com/hitoshi/streamhunter/internal/playlist"
	"github.com/hitoshi/streamhunter/internal/probe"
	"github.com/hitoshi/streamhunter/internal/repository"
	"github.com/hitoshi/streamhunter/internal/security"
	"github.com/hitoshi/streamhunter/internal/worker/check"
	"github.com/hitoshi/streamhunter/internal/worker/cleanup"
)

// defaultCheckBatchSize は1回の検証実行で取得するリンク数の上限。
const defaultCheckBatchSize = 500

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandCheck:
		return runCheck(cfg)
	case CommandCollect:
		return runCollect(cfg)
	case CommandGenerate:
		return runGenerate(cfg)
	case CommandSync:
		return runSync(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	channelRepo := repository.NewPostgresChannelRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCollector(registry)

	// 4. プレイリストビルダーの初期化
	generator := playlist.NewGenerator(linkRepo, metricsCollector, slog.Default(), playlist.GeneratorConfig{
		OutputPath: cfg.PlaylistOutputPath,
		MinScore:   cfg.PlaylistMinScore,
		Render:     playlist.DefaultRenderOptions(),
	})

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.Rate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.Burst = cfg.RateLimitGeneral
	}

	deps := &handler.RouterDeps{
		Logger:          slog.Default(),
		RateLimiter:     middleware.NewRateLimiter(rateLimiterCfg),
		Channels:        channelRepo,
		Links:           linkRepo,
		CheckResults:    repository.NewPostgresCheckResultRepo(db),
		Playlist:        generator,
		Health:          db,
		MetricsHandler:  metrics.Handler(registry),
		HistoryWindow:   cfg.CheckHistoryWindow,
		FreshnessWindow: cfg.LinkFreshnessWindow,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 検証スケジューラと収集ジョブを常駐させ、クリーンアップジョブを日次で実行する。
// ワーカーのメトリクスは専用の/metricsエンドポイントで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	channelRepo := repository.NewPostgresChannelRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)
	resultRepo := repository.NewPostgresCheckResultRepo(db)

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCollector(registry)

	// ffprobeが使えない環境では検証フェーズ2が成立しないため、起動時に検出する
	scheduler, err := buildScheduler(cfg, linkRepo, resultRepo, metricsCollector)
	if err != nil {
		return err
	}

	linkCollector := buildCollector(cfg, channelRepo, linkRepo, metricsCollector)

	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.CheckResultRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("check_interval", cfg.CheckInterval),
		slog.Duration("collect_interval", cfg.CollectInterval),
		slog.Int("max_concurrent", cfg.CheckMaxConcurrent),
	)

	// ワーカーのメトリクスエンドポイント
	metricsServer := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     metrics.SetupMetricsRoute(registry),
		ReadTimeout: 15 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// 収集ジョブをバックグラウンドで起動
	go linkCollector.Start(ctx)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 検証スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runCheck はリンク検証を1バッチだけ実行して終了する。
func runCheck(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	linkRepo := repository.NewPostgresLinkRepo(db)
	resultRepo := repository.NewPostgresCheckResultRepo(db)

	scheduler, err := buildScheduler(cfg, linkRepo, resultRepo, nil)
	if err != nil {
		return err
	}

	summary, err := scheduler.RunOnce(context.Background())
	if err != nil {
		return fmt.Errorf("check run failed: %w", err)
	}

	slog.Info("check run completed",
		slog.Int("checked", summary.Checked),
		slog.Int("valid", summary.Valid),
		slog.Int("invalid", summary.Invalid),
		slog.Int("write_errors", summary.WriteErrors),
		slog.Duration("duration", summary.Duration),
	)
	return nil
}

// runCollect は候補リンク収集を1回だけ実行して終了する。
func runCollect(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	channelRepo := repository.NewPostgresChannelRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)

	linkCollector := buildCollector(cfg, channelRepo, linkRepo, nil)

	saved, err := linkCollector.RunOnce(context.Background())
	if err != nil {
		return fmt.Errorf("collect run failed: %w", err)
	}

	total := 0
	for _, n := range saved {
		total += n
	}
	slog.Info("collect run completed",
		slog.Int("channel_count", len(saved)),
		slog.Int("saved_links", total),
	)
	return nil
}

// runGenerate はM3Uプレイリストを生成してファイルに出力する。
func runGenerate(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	linkRepo := repository.NewPostgresLinkRepo(db)

	metricsCollector := metrics.NewCollector(prometheus.NewRegistry())
	generator := playlist.NewGenerator(linkRepo, metricsCollector, slog.Default(), playlist.GeneratorConfig{
		OutputPath: cfg.PlaylistOutputPath,
		MinScore:   cfg.PlaylistMinScore,
		Render:     playlist.DefaultRenderOptions(),
	})

	result, err := generator.Generate(context.Background())
	if err != nil {
		return fmt.Errorf("playlist generation failed: %w", err)
	}

	slog.Info("playlist generated",
		slog.String("path", result.Path),
		slog.Int("channels", result.Channels),
		slog.Int("links", result.Links),
	)
	return nil
}

// runSync はYAMLカタログをデータベースへ同期する。
func runSync(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	channelRepo := repository.NewPostgresChannelRepo(db)
	syncer := channel.NewSyncer(channelRepo, slog.Default())

	result, err := syncer.SyncFromFile(context.Background(), cfg.ChannelsFile)
	if err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}

	slog.Info("catalog sync completed",
		slog.String("file", cfg.ChannelsFile),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// buildScheduler は検証スケジューラとその依存関係を構築する。
// ffprobeバイナリが見つからない場合はエラーを返す。
func buildScheduler(
	cfg *config.Config,
	linkRepo repository.LinkRepository,
	resultRepo repository.CheckResultRepository,
	metricsCollector check.MetricsRecorder,
) (*check.Scheduler, error) {
	ssrfGuard := security.NewSSRFGuard()

	ffprobeProber := probe.NewFFprobeProber(cfg.FFprobePath, slog.Default(), cfg.CheckProbeTimeout)
	if err := ffprobeProber.Verify(); err != nil {
		return nil, fmt.Errorf("ffprobe is not available: %w", err)
	}

	httpProber := probe.NewHTTPProber(ssrfGuard, slog.Default(), cfg.CollectUserAgent, cfg.CheckHTTPTimeout)
	streamProber := probe.NewStreamProber(httpProber, ffprobeProber)

	policy := check.DefaultRetryPolicy()
	policy.MaxRetries = cfg.CheckMaxRetries
	policy.TotalTimeout = cfg.CheckTotalTimeout

	checker := check.NewChecker(streamProber, check.DefaultScoringConfig(), policy, slog.Default())

	lifecycle := check.LifecycleConfig{
		MinValidScore:  cfg.ScoreMinValid,
		StaleRetention: cfg.ScoreStaleRetention,
	}

	return check.NewScheduler(linkRepo, resultRepo, checker, lifecycle, metricsCollector, slog.Default(), check.SchedulerConfig{
		MaxConcurrent:   cfg.CheckMaxConcurrent,
		BatchSize:       defaultCheckBatchSize,
		RecheckInterval: cfg.LinkFreshnessWindow,
		TickInterval:    cfg.CheckInterval,
	}), nil
}

// buildCollector は収集ジョブとそのソース群を構築する。
// デフォルトでIPTV検索サイト2つを照会し、COLLECT_FEED_URLSが
// 設定されている場合はRSS/Atomフィードもソースに加える。
func buildCollector(
	cfg *config.Config,
	channelRepo repository.ChannelRepository,
	linkRepo repository.LinkRepository,
	metricsCollector collector.MetricsRecorder,
) *collector.Collector {
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	sources := []collector.Source{
		collector.NewSearchPageSource(collector.SearchPageConfig{
			Name:         "iptv-search",
			SearchURL:    "https://iptv-search.com/zh-hans/search/",
			QueryParam:   "q",
			CardSelector: "div.channel-card",
			NameSelector: ".channel-name",
			LinkSelector: ".channel-url",
			UserAgent:    cfg.CollectUserAgent,
			Timeout:      cfg.CollectTimeout,
		}, ssrfGuard, sanitizer, slog.Default()),
		collector.NewSearchPageSource(collector.SearchPageConfig{
			Name:         "tonkiang",
			SearchURL:    "https://tonkiang.us/",
			QueryParam:   "iptv",
			CardSelector: "div.resultplus",
			NameSelector: "div.tip",
			LinkSelector: "tba.jbmj",
			UserAgent:    cfg.CollectUserAgent,
			Timeout:      cfg.CollectTimeout,
		}, ssrfGuard, sanitizer, slog.Default()),
	}

	for _, feedURL := range cfg.CollectFeedURLs {
		sources = append(sources, collector.NewFeedSource(
			feedURL, ssrfGuard, sanitizer, slog.Default(),
			cfg.CollectUserAgent, cfg.CollectTimeout,
		))
	}

	return collector.NewCollector(channelRepo, linkRepo, sources, ssrfGuard, metricsCollector, slog.Default(), collector.CollectorConfig{
		MaxPerChannel: cfg.CollectMaxPerChannel,
		SearchDelay:   cfg.CollectSearchDelay,
		TickInterval:  cfg.CollectInterval,
	})
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
