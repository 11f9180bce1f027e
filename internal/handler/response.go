// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// channelResponse はチャンネル情報のAPIレスポンス。
type channelResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	LogoURL     string   `json:"logo_url,omitempty"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category,omitempty"`
	Priority    int      `json:"priority"`
	Description string   `json:"description,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// linkResponse はリンク情報のAPIレスポンス。
// statusには鮮度ウィンドウを適用した導出状態を返す。
type linkResponse struct {
	ID                  string     `json:"id"`
	ChannelID           string     `json:"channel_id"`
	URL                 string     `json:"url"`
	Source              string     `json:"source,omitempty"`
	Status              string     `json:"status"`
	QualityScore        *int       `json:"quality_score"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastResponseTimeMs  *int64     `json:"last_response_time_ms"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	LastCheckedAt       *time.Time `json:"last_checked_at"`
	LastSuccessAt       *time.Time `json:"last_success_at"`
}

// checkResultResponse は検証結果1件のAPIレスポンス。
type checkResultResponse struct {
	ID             string                 `json:"id"`
	CheckType      string                 `json:"check_type"`
	Outcome        string                 `json:"outcome"`
	HTTPStatus     *int                   `json:"http_status"`
	ResponseTimeMs int64                  `json:"response_time_ms"`
	Metrics        *streamMetricsResponse `json:"metrics,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	CheckedAt      time.Time              `json:"checked_at"`
}

// streamMetricsResponse はffprobeで取得したストリーム特性のAPIレスポンス。
type streamMetricsResponse struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FrameRate     float64 `json:"frame_rate"`
	BitRate       int64   `json:"bit_rate"`
	SampleRate    int     `json:"sample_rate"`
	AudioChannels int     `json:"audio_channels"`
	VideoCodec    string  `json:"video_codec,omitempty"`
	AudioCodec    string  `json:"audio_codec,omitempty"`
}

func toChannelResponse(ch *model.Channel) channelResponse {
	return channelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		LogoURL:     ch.LogoURL,
		Keywords:    ch.Keywords,
		Category:    ch.Category,
		Priority:    ch.Priority,
		Description: ch.Description,
		IsActive:    ch.IsActive,
	}
}

func toLinkResponse(link *model.Link, now time.Time, freshnessWindow time.Duration) linkResponse {
	return linkResponse{
		ID:                  link.ID,
		ChannelID:           link.ChannelID,
		URL:                 link.URL,
		Source:              link.Source,
		Status:              string(link.EffectiveStatus(now, freshnessWindow)),
		QualityScore:        link.QualityScore,
		ConsecutiveFailures: link.ConsecutiveFailures,
		LastResponseTimeMs:  link.LastResponseTimeMs,
		ErrorMessage:        link.ErrorMessage,
		LastCheckedAt:       link.LastCheckedAt,
		LastSuccessAt:       link.LastSuccessAt,
	}
}

func toCheckResultResponse(result *model.CheckResult) checkResultResponse {
	resp := checkResultResponse{
		ID:             result.ID,
		CheckType:      string(result.CheckType),
		Outcome:        string(result.Outcome),
		HTTPStatus:     result.HTTPStatus,
		ResponseTimeMs: result.ResponseTimeMs,
		ErrorMessage:   result.ErrorMessage,
		CheckedAt:      result.CheckedAt,
	}
	if m := result.Metrics; m != nil {
		resp.Metrics = &streamMetricsResponse{
			Width:         m.Width,
			Height:        m.Height,
			FrameRate:     m.FrameRate,
			BitRate:       m.BitRate,
			SampleRate:    m.SampleRate,
			AudioChannels: m.AudioChannels,
			VideoCodec:    m.VideoCodec,
			AudioCodec:    m.AudioCodec,
		}
	}
	return resp
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL, model.ErrCodeInvalidStatus, model.ErrCodeInvalidCatalog:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeChannelNotFound, model.ErrCodeLinkNotFound:
		return http.StatusNotFound
	case model.ErrCodeProberUnavailable, model.ErrCodePlaylistGeneration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
