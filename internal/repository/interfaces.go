// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/streamhunter/internal/model"
)

// ChannelRepository はチャンネルデータの永続化インターフェース。
type ChannelRepository interface {
	// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Channel, error)

	// FindByName はチャンネル名でチャンネルを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Channel, error)

	// Create はチャンネルを作成する。
	Create(ctx context.Context, channel *model.Channel) error

	// Update はチャンネル情報を更新する。
	Update(ctx context.Context, channel *model.Channel) error

	// List はチャンネル一覧を返す。activeOnlyがtrueの場合は有効なチャンネルのみ。
	// categoryが空でない場合はカテゴリで絞り込む。
	// 並び順は (category, priority desc, name)。
	List(ctx context.Context, category string, activeOnly bool) ([]*model.Channel, error)
}

// LinkRepository はリンクデータの永続化インターフェース。
// 検証エンジンはレコードを削除しない。
type LinkRepository interface {
	// FindByID は指定IDのリンクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Link, error)

	// UpsertCandidate は収集した候補リンクを冪等に登録する。
	// 同一 (channel_id, url) のリンクが既に存在する場合は新規作成せず、
	// 既存リンクを返す。戻り値のboolは新規作成されたかを示す。
	UpsertCandidate(ctx context.Context, link *model.Link) (*model.Link, bool, error)

	// ListDueForCheck は検証対象のリンクを取得する。
	// status = unchecked、または last_checked_at が指定時刻より古いリンクを返す。
	// 検証対象の選定基準は呼び出し側が指定するフィルタであり、
	// コアが強制するものではない。
	ListDueForCheck(ctx context.Context, olderThan time.Time, limit int) ([]*model.Link, error)

	// ListByChannel はチャンネルのリンク一覧を返す。
	ListByChannel(ctx context.Context, channelID string) ([]*model.Link, error)

	// ListByStatus は指定ステータスのリンク一覧を返す。
	ListByStatus(ctx context.Context, status model.LinkStatus) ([]*model.Link, error)

	// ListValidOrdered はstatus=validのリンクを全チャンネル分返す。
	// 並び順は (チャンネルのpriority desc, quality_score desc, last_response_time_ms asc)。
	// プレイリスト生成の選定契約に使用する。
	ListValidOrdered(ctx context.Context, minScore int, categories []string) ([]ValidLink, error)

	// UpdateCheckState は検証後のリンク状態を更新する。
	// status、quality_score、consecutive_failures、last_checked_at、
	// last_response_time_ms、last_success_at、error_messageを書き込む。
	UpdateCheckState(ctx context.Context, link *model.Link) error

	// CountByStatus はステータスごとのリンク数を返す。
	CountByStatus(ctx context.Context) (map[model.LinkStatus]int, error)
}

// CheckResultRepository は検証結果履歴の永続化インターフェース。
// 検証結果は作成後不変であり、追記のみ行う。
type CheckResultRepository interface {
	// Append は検証結果を追記する。
	Append(ctx context.Context, result *model.CheckResult) error

	// ListRecentByLink はリンクの直近N件の検証結果を新しい順に返す。
	ListRecentByLink(ctx context.Context, linkID string, limit int) ([]*model.CheckResult, error)
}

// ValidLink はプレイリスト選定用にリンクとチャンネル情報を結合した構造体。
type ValidLink struct {
	model.Link
	ChannelName     string
	ChannelLogoURL  string
	ChannelCategory string
	ChannelPriority int
	// Resolution は直近の成功した検証で観測された解像度（例 "1920x1080"）。
	// 観測値がない場合は空文字列。
	Resolution string
}
