// Package model はドメインモデルを定義する。
package model

import "time"

// Channel は論理的な放送チャンネルを表す。
// 検証エンジンから見ると読み取り専用のコンテキストであり、
// 作成・編集はチャンネルカタログ（channels.yaml）の同期で行われる。
type Channel struct {
	ID          string
	Name        string
	LogoURL     string
	Keywords    []string // 検索キーワード（リンク収集で使用）
	Category    string
	Priority    int // 1-10。プレイリストの並び順にのみ使用する
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultPriority はチャンネル優先度のデフォルト値。
const DefaultPriority = 5

// NormalizePriority は優先度を1-10の範囲に丸める。
// 0以下の場合はデフォルト値を返す。
func NormalizePriority(p int) int {
	if p <= 0 {
		return DefaultPriority
	}
	if p > 10 {
		return 10
	}
	return p
}
