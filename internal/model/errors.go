package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し元に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, channel, link, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeChannelNotFound    = "CHANNEL_NOT_FOUND"
	ErrCodeLinkNotFound       = "LINK_NOT_FOUND"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidCatalog     = "INVALID_CATALOG"
	ErrCodeProberUnavailable  = "PROBER_UNAVAILABLE"
	ErrCodePlaylistGeneration = "PLAYLIST_GENERATION_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を指定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているストリームのURLを指定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewChannelNotFoundError はチャンネル未検出エラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "channel",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewLinkNotFoundError はリンク未検出エラーを生成する。
func NewLinkNotFoundError(linkID string) *APIError {
	return &APIError{
		Code:     ErrCodeLinkNotFound,
		Message:  fmt.Sprintf("指定されたリンクが見つかりません: %s", linkID),
		Category: "link",
		Action:   "リンクIDを確認してください。",
	}
}

// NewInvalidStatusError は無効なステータスフィルタエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには unchecked、valid、invalid、stale のいずれかを指定してください。",
	}
}

// NewInvalidCatalogError はチャンネルカタログの検証エラーを生成する。
func NewInvalidCatalogError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCatalog,
		Message:  fmt.Sprintf("チャンネルカタログが不正です: %s", reason),
		Category: "validation",
		Action:   "channels.yamlの形式を確認してください。",
	}
}

// NewProberUnavailableError は外部アナライザが利用できない場合のエラーを生成する。
// 検証実行前に一度だけ検出される致命的エラーであり、チェックごとには発生しない。
func NewProberUnavailableError(path string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeProberUnavailable,
		Message:  fmt.Sprintf("ストリームアナライザ（%s）が見つかりません: %v", path, err),
		Category: "system",
		Action:   "ffprobeをインストールするか、FFPROBE_PATHで実行ファイルの場所を指定してください。",
	}
}
