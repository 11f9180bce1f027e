package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/streamhunter/internal/playlist"
)

// PlaylistBuilder はプレイリストハンドラーが必要とするインターフェース。
type PlaylistBuilder interface {
	// Entries は現在の選定結果を返す。
	Entries(ctx context.Context) ([]playlist.Entry, error)
	// Build はM3U形式の内容と選定結果を返す。
	Build(ctx context.Context) (string, []playlist.Entry, error)
}

// PlaylistHandler はプレイリスト参照のHTTPハンドラー。
type PlaylistHandler struct {
	builder PlaylistBuilder
}

// NewPlaylistHandler はPlaylistHandlerを生成する。
func NewPlaylistHandler(builder PlaylistBuilder) *PlaylistHandler {
	return &PlaylistHandler{builder: builder}
}

// playlistEntryResponse は選定結果1チャンネル分のAPIレスポンス。
type playlistEntryResponse struct {
	ChannelID   string         `json:"channel_id"`
	ChannelName string         `json:"channel_name"`
	Category    string         `json:"category,omitempty"`
	Priority    int            `json:"priority"`
	Best        playlistLink   `json:"best"`
	Alternates  []playlistLink `json:"alternates"`
}

// playlistLink は選定されたリンクのAPIレスポンス。
type playlistLink struct {
	URL            string `json:"url"`
	QualityScore   *int   `json:"quality_score"`
	ResponseTimeMs *int64 `json:"response_time_ms"`
	Resolution     string `json:"resolution,omitempty"`
}

// GetPlaylist は現在の選定結果をJSONで返す。
// GET /api/playlist
func (h *PlaylistHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.builder.Entries(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]playlistEntryResponse, len(entries))
	for i, entry := range entries {
		alternates := make([]playlistLink, len(entry.Alternates))
		for j, alt := range entry.Alternates {
			alternates[j] = playlistLink{
				URL:            alt.URL,
				QualityScore:   alt.QualityScore,
				ResponseTimeMs: alt.LastResponseTimeMs,
				Resolution:     alt.Resolution,
			}
		}
		results[i] = playlistEntryResponse{
			ChannelID:   entry.ChannelID,
			ChannelName: entry.ChannelName,
			Category:    entry.Category,
			Priority:    entry.Priority,
			Best: playlistLink{
				URL:            entry.Best.URL,
				QualityScore:   entry.Best.QualityScore,
				ResponseTimeMs: entry.Best.LastResponseTimeMs,
				Resolution:     entry.Best.Resolution,
			},
			Alternates: alternates,
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"entries": results})
}

// GetPlaylistM3U は現在の選定結果をM3U形式で返す。
// GET /playlist.m3u
func (h *PlaylistHandler) GetPlaylistM3U(w http.ResponseWriter, r *http.Request) {
	content, _, err := h.builder.Build(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}
