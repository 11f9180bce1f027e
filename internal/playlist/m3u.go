package playlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/streamhunter/internal/repository"
)

// maxAlternateComments はコメントとして出力する代替リンクの最大数。
const maxAlternateComments = 3

// RenderOptions はM3U出力の体裁を指定する。
type RenderOptions struct {
	// Title は#PLAYLIST行に出力するプレイリスト名。
	Title string
	// IncludeLogo がtrueの場合、tvg-logo属性を出力する。
	IncludeLogo bool
	// IncludeGroup がtrueの場合、group-title属性とカテゴリ区切りを出力する。
	IncludeGroup bool
}

// DefaultRenderOptions はM3U出力のデフォルト設定を返す。
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Title:        "StreamHunter",
		IncludeLogo:  true,
		IncludeGroup: true,
	}
}

// RenderM3U は選定結果をM3U形式の文字列に変換する。
func RenderM3U(entries []Entry, generatedAt time.Time, opts RenderOptions) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#PLAYLIST:%s - Generated at %s\n", opts.Title, generatedAt.Format(time.RFC3339))

	currentCategory := ""
	wroteCategory := false
	for _, entry := range entries {
		if opts.IncludeGroup && (!wroteCategory || entry.Category != currentCategory) {
			currentCategory = entry.Category
			wroteCategory = true
			b.WriteString("\n")
			fmt.Fprintf(&b, "# === %s ===\n", currentCategory)
		}

		b.WriteString(extinfLine(entry, opts))
		b.WriteString("\n")
		b.WriteString(entry.Best.URL)
		b.WriteString("\n")

		if len(entry.Alternates) > 0 {
			fmt.Fprintf(&b, "# Alternatives for %s:\n", entry.ChannelName)
			for i, alt := range entry.Alternates {
				if i >= maxAlternateComments {
					break
				}
				fmt.Fprintf(&b, "# Alt%d%s: %s\n", i+1, qualityTag(alt), alt.URL)
			}
		}
	}

	return b.String()
}

// extinfLine はチャンネル1件分の#EXTINF行を組み立てる。
func extinfLine(entry Entry, opts RenderOptions) string {
	attrs := make([]string, 0, 4)
	if opts.IncludeLogo && entry.LogoURL != "" {
		attrs = append(attrs, fmt.Sprintf("tvg-logo=%q", entry.LogoURL))
	}
	if opts.IncludeGroup && entry.Category != "" {
		attrs = append(attrs, fmt.Sprintf("group-title=%q", entry.Category))
	}
	attrs = append(attrs, fmt.Sprintf("tvg-name=%q", displayName(entry.ChannelName, entry.Best.Resolution)))
	if score := qualityScore(entry.Best); score > 0 {
		attrs = append(attrs, fmt.Sprintf("tvg-id=%q", fmt.Sprintf("quality_%d", score)))
	}

	title := displayName(entry.ChannelName, entry.Best.Resolution) + qualityTag(entry.Best)
	return fmt.Sprintf("#EXTINF:-1 %s,%s", strings.Join(attrs, " "), title)
}

// displayName は解像度付きの表示名を返す。解像度が不明なら名前のみ。
func displayName(name, resolution string) string {
	if resolution == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, resolution)
}

// qualityTag は " [Q95]" 形式の品質表記を返す。スコア未設定なら空文字列。
func qualityTag(link repository.ValidLink) string {
	if score := qualityScore(link); score > 0 {
		return fmt.Sprintf(" [Q%d]", score)
	}
	return ""
}

func qualityScore(link repository.ValidLink) int {
	if link.QualityScore == nil {
		return 0
	}
	return *link.QualityScore
}
