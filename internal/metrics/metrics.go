// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/streamhunter/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// worker/check・collector・playlistの各MetricsRecorderインターフェースを満たす。
type Collector struct {
	checkSuccess      prometheus.Counter
	checkFail         *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	checkLatency      prometheus.Histogram
	linksByStatus     *prometheus.GaugeVec
	linksCollected    prometheus.Counter
	playlistGenerated prometheus.Counter
	playlistChannels  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamhunter_check_success_total",
			Help: "リンク検証成功の合計数",
		}),
		checkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamhunter_check_fail_total",
			Help: "リンク検証失敗の合計数（結果分類別）",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamhunter_http_status_total",
			Help: "到達性プローブのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		checkLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamhunter_check_latency_seconds",
			Help:    "リンク検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		linksByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamhunter_links_by_status",
			Help: "ステータス別のリンク数",
		}, []string{"status"}),
		linksCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamhunter_links_collected_total",
			Help: "収集された新規候補リンクの合計数",
		}),
		playlistGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamhunter_playlist_generated_total",
			Help: "プレイリスト生成の合計回数",
		}),
		playlistChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamhunter_playlist_channels",
			Help: "直近のプレイリストに含まれるチャンネル数",
		}),
	}

	reg.MustRegister(
		c.checkSuccess,
		c.checkFail,
		c.httpStatus,
		c.checkLatency,
		c.linksByStatus,
		c.linksCollected,
		c.playlistGenerated,
		c.playlistChannels,
	)

	return c
}

// RecordCheck は1リンクの検証完了を記録する。
// 成功はカウンタ、失敗は結果分類別のカウンタに加算し、レイテンシを観測する。
func (c *Collector) RecordCheck(outcome model.CheckOutcome, durationMs int64) {
	if outcome == model.OutcomeSuccess {
		c.checkSuccess.Inc()
	} else {
		c.checkFail.WithLabelValues(string(outcome)).Inc()
	}
	c.checkLatency.Observe(float64(durationMs) / 1000.0)
}

// RecordHTTPStatus は到達性プローブのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetLinkCounts はステータスごとのリンク数を記録する。
func (c *Collector) SetLinkCounts(counts map[model.LinkStatus]int) {
	for _, status := range []model.LinkStatus{
		model.LinkStatusUnchecked, model.LinkStatusValid, model.LinkStatusInvalid,
	} {
		c.linksByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// RecordLinksCollected は収集された新規候補リンク数を記録する。
func (c *Collector) RecordLinksCollected(count int) {
	c.linksCollected.Add(float64(count))
}

// RecordPlaylistGenerated はプレイリスト生成を記録する。
func (c *Collector) RecordPlaylistGenerated(channels int) {
	c.playlistGenerated.Inc()
	c.playlistChannels.Set(float64(channels))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
