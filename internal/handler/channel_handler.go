package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/streamhunter/internal/model"
)

// ChannelReader はチャンネルハンドラーが必要とする読み取りインターフェース。
type ChannelReader interface {
	FindByID(ctx context.Context, id string) (*model.Channel, error)
	List(ctx context.Context, category string, activeOnly bool) ([]*model.Channel, error)
}

// ChannelLinkReader はチャンネル配下のリンク一覧の読み取りインターフェース。
type ChannelLinkReader interface {
	ListByChannel(ctx context.Context, channelID string) ([]*model.Link, error)
}

// ChannelHandler はチャンネル参照のHTTPハンドラー。
type ChannelHandler struct {
	channels        ChannelReader
	links           ChannelLinkReader
	freshnessWindow time.Duration
}

// NewChannelHandler はChannelHandlerを生成する。
func NewChannelHandler(channels ChannelReader, links ChannelLinkReader, freshnessWindow time.Duration) *ChannelHandler {
	return &ChannelHandler{
		channels:        channels,
		links:           links,
		freshnessWindow: freshnessWindow,
	}
}

// ListChannels はチャンネル一覧を返す。
// GET /api/channels?category=&all=
// デフォルトは有効なチャンネルのみ。all=trueで無効チャンネルも含める。
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	activeOnly := r.URL.Query().Get("all") != "true"

	channels, err := h.channels.List(r.Context(), category, activeOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]channelResponse, len(channels))
	for i, ch := range channels {
		results[i] = toChannelResponse(ch)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"channels": results})
}

// GetChannel はチャンネル詳細を返す。
// GET /api/channels/:id
func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")

	ch, err := h.channels.FindByID(r.Context(), channelID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ch == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewChannelNotFoundError(channelID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toChannelResponse(ch))
}

// ListChannelLinks はチャンネル配下のリンク一覧を返す。
// GET /api/channels/:id/links
// 各リンクのstatusには鮮度ウィンドウを適用した導出状態を返す。
func (h *ChannelHandler) ListChannelLinks(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")

	ch, err := h.channels.FindByID(r.Context(), channelID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ch == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewChannelNotFoundError(channelID))
		return
	}

	links, err := h.links.ListByChannel(r.Context(), channelID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := time.Now()
	results := make([]linkResponse, len(links))
	for i, link := range links {
		results[i] = toLinkResponse(link, now, h.freshnessWindow)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"channel_id": channelID,
		"links":      results,
	})
}
