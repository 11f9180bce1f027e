// Package collector はチャンネルごとの配信候補リンクの収集機能を提供する。
// 検索サイトのスクレイピングとRSS/Atomフィードの2種類のソースから
// 候補URLを発見し、冪等にカタログへ登録する。
package collector

import "context"

// Candidate は収集された1つの配信候補を表す。
type Candidate struct {
	// URL は候補の配信アドレス。
	URL string
	// DisplayName はソース側で表示されていたチャンネル名。サニタイズ済み。
	DisplayName string
	// Source は候補の発見元の識別子（ホスト名など）。
	Source string
}

// Source は候補リンクの発見元を抽象化する。
// 実装はキーワード1件の検索に対して候補のリストを返す。
// 結果が0件でもエラーにはしない。
type Source interface {
	// Name はソースの識別子を返す。
	Name() string

	// Search はキーワードに一致する配信候補を検索する。
	Search(ctx context.Context, keyword string) ([]Candidate, error)
}
