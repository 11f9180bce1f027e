// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Check（検証エンジン）
	CheckHTTPTimeout   time.Duration // 到達性検証のタイムアウト
	CheckProbeTimeout  time.Duration // ffprobeのウォールクロックタイムアウト
	CheckTotalTimeout  time.Duration // 1リンクあたりの合計デッドライン
	CheckMaxRetries    int           // フェーズ1の一時的失敗のリトライ上限
	CheckMaxConcurrent int           // ワーカープールの並列上限
	CheckHistoryWindow int           // 履歴APIが返す直近の検証結果の件数
	CheckInterval      time.Duration // workerモードでの検証サイクル間隔

	// Score
	ScoreMinValid       int // validと判定する合成スコアの下限
	ScoreStaleRetention int // 失敗時に旧スコアを保持する連続失敗回数の上限

	// Link
	LinkFreshnessWindow time.Duration // staleラベルを導出する鮮度ウィンドウ

	// Collect（リンク収集）
	CollectInterval      time.Duration
	CollectMaxPerChannel int
	CollectSearchDelay   time.Duration // 同一ソースへのリクエスト最低間隔
	CollectTimeout       time.Duration
	CollectUserAgent     string
	CollectFeedURLs      []string // RSS/Atomソースとして購読するフィードURL（カンマ区切り）

	// Probe
	FFprobePath string

	// Playlist
	PlaylistOutputPath string
	PlaylistMinScore   int

	// Catalog
	ChannelsFile string

	// Retention
	CheckResultRetentionDays int

	// Rate Limit
	RateLimitGeneral int // req/min/クライアント

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}

	// Optional fields with defaults
	cfg.CheckHTTPTimeout = getEnvDuration("CHECK_HTTP_TIMEOUT", 5*time.Second)
	cfg.CheckProbeTimeout = getEnvDuration("CHECK_PROBE_TIMEOUT", 8*time.Second)
	cfg.CheckTotalTimeout = getEnvDuration("CHECK_TOTAL_TIMEOUT", 15*time.Second)
	cfg.CheckMaxRetries = getEnvInt("CHECK_MAX_RETRIES", 2)
	cfg.CheckMaxConcurrent = getEnvInt("CHECK_MAX_CONCURRENT", 20)
	cfg.CheckHistoryWindow = getEnvInt("CHECK_HISTORY_WINDOW", 3)
	cfg.CheckInterval = getEnvDuration("CHECK_INTERVAL", 6*time.Hour)

	cfg.ScoreMinValid = getEnvInt("SCORE_MIN_VALID", 1)
	cfg.ScoreStaleRetention = getEnvInt("SCORE_STALE_RETENTION", 2)

	cfg.LinkFreshnessWindow = getEnvDuration("LINK_FRESHNESS_WINDOW", 24*time.Hour)

	cfg.CollectInterval = getEnvDuration("COLLECT_INTERVAL", 12*time.Hour)
	cfg.CollectMaxPerChannel = getEnvInt("COLLECT_MAX_PER_CHANNEL", 50)
	cfg.CollectSearchDelay = getEnvDuration("COLLECT_SEARCH_DELAY", 2*time.Second)
	cfg.CollectTimeout = getEnvDuration("COLLECT_TIMEOUT", 30*time.Second)
	cfg.CollectUserAgent = getEnvString("COLLECT_USER_AGENT",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	cfg.CollectFeedURLs = getEnvStringList("COLLECT_FEED_URLS")

	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")

	cfg.PlaylistOutputPath = getEnvString("PLAYLIST_OUTPUT_PATH", "./output/playlist.m3u")
	cfg.PlaylistMinScore = getEnvInt("PLAYLIST_MIN_SCORE", 0)

	cfg.ChannelsFile = getEnvString("CHANNELS_FILE", "./config/channels.yaml")

	cfg.CheckResultRetentionDays = getEnvInt("CHECK_RESULT_RETENTION_DAYS", 30)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
