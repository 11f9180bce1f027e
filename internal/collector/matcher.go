package collector

import (
	"regexp"
	"strings"
)

// qualityMarkers はチャンネル名から除去する画質表記。
// 「CCTV1 高清」のような表記を基礎名「CCTV1」に正規化するために使う。
var qualityMarkers = []string{
	"4k", "uhd", "超高清", "超清", "高清", "hd", "1080p", "1080i", "720p",
	"fhd", "fullhd", "標清", "标清", "sd", "480p",
}

// bracketPattern は括弧書きの補足表記（(1080p)、[Not 24/7]など）。
var bracketPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

// nonAlphanumPattern は英数字とCJK文字以外の文字。
var nonAlphanumPattern = regexp.MustCompile(`[^0-9a-z\p{Han}\p{Hiragana}\p{Katakana}+]`)

var digitsPattern = regexp.MustCompile(`[0-9]+`)

// normalizeChannelName はチャンネル名を比較用に正規化する。
// 小文字化し、括弧書きと画質表記を除去し、記号と空白を落とす。
func normalizeChannelName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = bracketPattern.ReplaceAllString(s, "")
	for _, marker := range qualityMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	return nonAlphanumPattern.ReplaceAllString(s, "")
}

// MatchesKeyword はスクレイピングしたチャンネル名が検索キーワードに
// 対応するかを判定する。画質表記の違いは無視し、数字を含むキーワードは
// 数字部分の完全一致を要求する。「CCTV1」が「CCTV10」に誤マッチしない。
func MatchesKeyword(channelName, keyword string) bool {
	if channelName == "" || keyword == "" {
		return false
	}

	name := normalizeChannelName(channelName)
	key := nonAlphanumPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(keyword)), "")
	if name == "" || key == "" {
		return false
	}

	if name == key {
		return true
	}

	// +付きチャンネル（CCTV5+など）は+の有無まで一致を要求する
	if strings.Contains(key, "+") != strings.Contains(name, "+") {
		return false
	}

	// キーワードが数字を含む場合は数字列の完全一致を要求する
	keyDigits := digitsPattern.FindAllString(key, -1)
	if len(keyDigits) > 0 {
		nameDigits := digitsPattern.FindAllString(name, -1)
		matched := false
		for _, kd := range keyDigits {
			for _, nd := range nameDigits {
				if kd == nd {
					matched = true
				}
			}
		}
		if !matched {
			return false
		}
	}

	return strings.Contains(name, key)
}
