package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/streamhunter/internal/model"
)

// LinkReader はリンクハンドラーが必要とする読み取りインターフェース。
type LinkReader interface {
	FindByID(ctx context.Context, id string) (*model.Link, error)
	ListByStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error)
}

// CheckHistoryReader はリンクの検証履歴の読み取りインターフェース。
type CheckHistoryReader interface {
	ListRecentByLink(ctx context.Context, linkID string, limit int) ([]*model.CheckResult, error)
}

// LinkHandler はリンク参照のHTTPハンドラー。
type LinkHandler struct {
	links           LinkReader
	history         CheckHistoryReader
	historyWindow   int
	freshnessWindow time.Duration
}

// NewLinkHandler はLinkHandlerを生成する。
// historyWindowは履歴APIが返す直近の検証結果の件数。
func NewLinkHandler(links LinkReader, history CheckHistoryReader, historyWindow int, freshnessWindow time.Duration) *LinkHandler {
	return &LinkHandler{
		links:           links,
		history:         history,
		historyWindow:   historyWindow,
		freshnessWindow: freshnessWindow,
	}
}

// GetLinkHistory はリンクの直近の検証履歴を新しい順に返す。
// GET /api/links/:id/history
func (h *LinkHandler) GetLinkHistory(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "id")

	link, err := h.links.FindByID(r.Context(), linkID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if link == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewLinkNotFoundError(linkID))
		return
	}

	results, err := h.history.ListRecentByLink(r.Context(), linkID, h.historyWindow)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	history := make([]checkResultResponse, 0, len(results))
	for _, result := range results {
		history = append(history, toCheckResultResponse(result))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"link_id": linkID,
		"history": history,
	})
}

// ListLinks は指定ステータスのリンク一覧を返す。
// GET /api/links?status=
// statusはunchecked、valid、invalid、staleのいずれか。
// staleは保存状態ではなく導出ラベルであり、valid/invalidの保存状態のうち
// 最終検証が鮮度ウィンドウより古いリンクを返す。valid/invalidを指定した
// 場合は鮮度ウィンドウ内のリンクのみを返す。
func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError("(未指定)"))
		return
	}

	links, err := h.listByEffectiveStatus(r.Context(), model.LinkStatus(status))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if links == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(status))
		return
	}

	now := time.Now()
	results := make([]linkResponse, 0, len(links))
	for _, link := range links {
		results = append(results, toLinkResponse(link, now, h.freshnessWindow))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": status,
		"links":  results,
	})
}

// listByEffectiveStatus は導出状態でリンクを絞り込む。
// 未知のステータスの場合はnilスライスを返す。
func (h *LinkHandler) listByEffectiveStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error) {
	now := time.Now()

	switch status {
	case model.LinkStatusUnchecked:
		return h.links.ListByStatus(ctx, model.LinkStatusUnchecked)

	case model.LinkStatusValid, model.LinkStatusInvalid:
		stored, err := h.links.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		fresh := make([]*model.Link, 0, len(stored))
		for _, link := range stored {
			if link.EffectiveStatus(now, h.freshnessWindow) == status {
				fresh = append(fresh, link)
			}
		}
		return fresh, nil

	case model.LinkStatusStale:
		stale := make([]*model.Link, 0)
		for _, stored := range []model.LinkStatus{model.LinkStatusValid, model.LinkStatusInvalid} {
			links, err := h.links.ListByStatus(ctx, stored)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				if link.EffectiveStatus(now, h.freshnessWindow) == model.LinkStatusStale {
					stale = append(stale, link)
				}
			}
		}
		return stale, nil

	default:
		return nil, nil
	}
}
