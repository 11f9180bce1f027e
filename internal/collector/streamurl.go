package collector

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// streamURLPatterns はテキストから配信URLを抽出する正規表現。
// HLS/TS/FLV/MP4の拡張子付きURLと、パスに配信系キーワードを含むURLを対象にする。
var streamURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://[^\s<>"')]+\.m3u8(?:\?[^\s<>"')]*)?`),
	regexp.MustCompile(`(?i)https?://[^\s<>"')]+\.ts(?:\?[^\s<>"')]*)?`),
	regexp.MustCompile(`(?i)https?://[^\s<>"')]+\.flv(?:\?[^\s<>"')]*)?`),
	regexp.MustCompile(`(?i)https?://[^\s<>"')]+\.mp4(?:\?[^\s<>"')]*)?`),
	regexp.MustCompile(`(?i)https?://[^\s<>"')]*(?:live|stream|iptv|hls)[^\s<>"')]*`),
}

// streamExtensions は配信URLとして認識する拡張子。
var streamExtensions = []string{".m3u8", ".ts", ".flv", ".mp4"}

// streamKeywords は拡張子がない場合に配信URLとして認識するパス中のキーワード。
var streamKeywords = []string{"live", "stream", "iptv", "hls", "channel"}

// ExtractStreamURLs はテキストに埋め込まれた配信URLをすべて抽出する。
// 重複は除去され、順序は保証されない。
func ExtractStreamURLs(text string) []string {
	seen := make(map[string]struct{})
	for _, pattern := range streamURLPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			match = strings.TrimSpace(match)
			if !IsStreamURL(match) {
				continue
			}
			seen[match] = struct{}{}
		}
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	return urls
}

// ExtractStreamURLsFromNodes はHTMLノードツリーの属性値から配信URLを抽出する。
// テキストに現れないhref/src/data-*属性に埋め込まれたURLを拾うための
// フォールバックで、重複は除去される。
func ExtractStreamURLsFromNodes(nodes []*html.Node) []string {
	seen := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				v := strings.TrimSpace(attr.Val)
				if IsStreamURL(v) {
					seen[v] = struct{}{}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	return urls
}

// IsStreamURL はURLが配信候補として妥当かを判定する。
// http/httpsで、配信系の拡張子またはキーワードを含むURLのみ許可する。
func IsStreamURL(rawURL string) bool {
	if len(rawURL) < 10 {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}

	lower := strings.ToLower(rawURL)
	for _, ext := range streamExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, keyword := range streamKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
