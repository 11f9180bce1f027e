package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

// SummaryLinkReader はサマリハンドラーが必要とするリンク読み取りインターフェース。
type SummaryLinkReader interface {
	CountByStatus(ctx context.Context) (map[model.LinkStatus]int, error)
	ListByStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error)
}

// SummaryChannelReader はサマリハンドラーが必要とするチャンネル読み取りインターフェース。
type SummaryChannelReader interface {
	List(ctx context.Context, category string, activeOnly bool) ([]*model.Channel, error)
}

// SummaryHandler はカタログ全体のサマリを返すHTTPハンドラー。
type SummaryHandler struct {
	links           SummaryLinkReader
	channels        SummaryChannelReader
	freshnessWindow time.Duration
}

// NewSummaryHandler はSummaryHandlerを生成する。
func NewSummaryHandler(links SummaryLinkReader, channels SummaryChannelReader, freshnessWindow time.Duration) *SummaryHandler {
	return &SummaryHandler{
		links:           links,
		channels:        channels,
		freshnessWindow: freshnessWindow,
	}
}

// summaryResponse はサマリのAPIレスポンス。
// link_countsは保存状態の集計、stale_countは鮮度ウィンドウを適用した導出値。
type summaryResponse struct {
	ActiveChannels int            `json:"active_channels"`
	LinkCounts     map[string]int `json:"link_counts"`
	StaleCount     int            `json:"stale_count"`
}

// GetSummary はチャンネル数とリンクの状態集計を返す。
// GET /api/summary
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channels, err := h.channels.List(ctx, "", true)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	counts, err := h.links.CountByStatus(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	linkCounts := make(map[string]int, len(counts))
	for status, count := range counts {
		linkCounts[string(status)] = count
	}

	stale, err := h.countStale(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, summaryResponse{
		ActiveChannels: len(channels),
		LinkCounts:     linkCounts,
		StaleCount:     stale,
	})
}

// countStale は鮮度ウィンドウを超えたvalid/invalidリンク数を数える。
func (h *SummaryHandler) countStale(ctx context.Context) (int, error) {
	now := time.Now()
	stale := 0
	for _, stored := range []model.LinkStatus{model.LinkStatusValid, model.LinkStatusInvalid} {
		links, err := h.links.ListByStatus(ctx, stored)
		if err != nil {
			return 0, err
		}
		for _, link := range links {
			if link.EffectiveStatus(now, h.freshnessWindow) == model.LinkStatusStale {
				stale++
			}
		}
	}
	return stale, nil
}
