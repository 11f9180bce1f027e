// Package playlist は検証済みリンクからM3Uプレイリストを生成する。
package playlist

import (
	"sort"

	"github.com/hitoshi/streamhunter/internal/repository"
)

// maxAlternates はチャンネルごとに保持する代替リンクの最大数。
const maxAlternates = 4

// Entry はプレイリスト上の1チャンネル分の選定結果。
// Bestが配信に使う最良リンク、Alternatesは同じ並び順で続く代替リンク。
type Entry struct {
	ChannelID   string
	ChannelName string
	LogoURL     string
	Category    string
	Priority    int
	Best        repository.ValidLink
	Alternates  []repository.ValidLink
}

// Select は有効リンク一覧をチャンネルごとにまとめ、先頭を最良リンク、
// 続く最大4本を代替リンクとして選定する。
// 入力はListValidOrderedの順序（priority desc, quality_score desc,
// response_time asc）で並んでいることを前提とする。
// 戻り値は (カテゴリ, priority desc, チャンネル名) 順。
func Select(links []repository.ValidLink) []Entry {
	var entries []Entry
	index := make(map[string]int)

	for _, link := range links {
		i, ok := index[link.ChannelID]
		if !ok {
			index[link.ChannelID] = len(entries)
			entries = append(entries, Entry{
				ChannelID:   link.ChannelID,
				ChannelName: link.ChannelName,
				LogoURL:     link.ChannelLogoURL,
				Category:    link.ChannelCategory,
				Priority:    link.ChannelPriority,
				Best:        link,
			})
			continue
		}
		if len(entries[i].Alternates) < maxAlternates {
			entries[i].Alternates = append(entries[i].Alternates, link)
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].Category != entries[b].Category {
			return entries[a].Category < entries[b].Category
		}
		if entries[a].Priority != entries[b].Priority {
			return entries[a].Priority > entries[b].Priority
		}
		return entries[a].ChannelName < entries[b].ChannelName
	})

	return entries
}
