package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/streamhunter/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	Channels ChannelReader
	Links    interface {
		ChannelLinkReader
		LinkReader
		SummaryLinkReader
	}
	CheckResults CheckHistoryReader
	Playlist     PlaylistBuilder
	Health       Pinger

	// MetricsHandler は/metricsを提供するハンドラー。nilなら公開しない。
	MetricsHandler http.Handler

	// HistoryWindow は履歴APIが返す直近の検証結果の件数。
	HistoryWindow   int
	FreshnessWindow time.Duration
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → RateLimit（/api配下のみ）
//
// /healthz と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	channelHandler := NewChannelHandler(deps.Channels, deps.Links, deps.FreshnessWindow)
	linkHandler := NewLinkHandler(deps.Links, deps.CheckResults, deps.HistoryWindow, deps.FreshnessWindow)
	playlistHandler := NewPlaylistHandler(deps.Playlist)
	summaryHandler := NewSummaryHandler(deps.Links, deps.Channels, deps.FreshnessWindow)
	healthHandler := NewHealthHandler(deps.Health)

	// --- 運用エンドポイント（レート制限なし） ---
	r.Get("/healthz", healthHandler.Healthz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/playlist.m3u", playlistHandler.GetPlaylistM3U)

	// --- 読み取りAPI ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/channels", func(r chi.Router) {
			r.Get("/", channelHandler.ListChannels)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", channelHandler.GetChannel)
				r.Get("/links", channelHandler.ListChannelLinks)
			})
		})

		r.Get("/api/links", linkHandler.ListLinks)
		r.Get("/api/links/{id}/history", linkHandler.GetLinkHistory)
		r.Get("/api/playlist", playlistHandler.GetPlaylist)
		r.Get("/api/summary", summaryHandler.GetSummary)
	})

	return r
}
