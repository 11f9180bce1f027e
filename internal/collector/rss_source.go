package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/streamhunter/internal/security"
)

// maxFeedBodySize はフィードの最大読み込みサイズ。
const maxFeedBodySize = 5 * 1024 * 1024

// FeedSource は配信リスト告知のRSS/Atomフィードを候補ソースとして扱う。
// フィード記事のタイトルがキーワードに一致する場合、記事本文と
// リンクから配信URLを抽出する。
type FeedSource struct {
	feedURL   string
	ssrfGuard SSRFValidator
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
}

// NewFeedSource は新しいFeedSourceを生成する。
func NewFeedSource(
	feedURL string,
	ssrfGuard SSRFValidator,
	sanitizer security.TextSanitizerService,
	logger *slog.Logger,
	userAgent string,
	timeout time.Duration,
) *FeedSource {
	return &FeedSource{
		feedURL:   feedURL,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		logger:    logger,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Name はソースの識別子を返す。
func (s *FeedSource) Name() string {
	return "feed:" + s.feedURL
}

// Search はフィードを取得し、キーワードに一致する記事から配信候補を抽出する。
func (s *FeedSource) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("フィードリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	client := s.ssrfGuard.NewSafeClient(s.timeout)
	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("フィードの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		s.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	var candidates []Candidate
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		title := s.sanitizer.Sanitize(item.Title)
		if !MatchesKeyword(title, keyword) {
			continue
		}

		// 記事リンク、本文、概要のすべてから配信URLを拾う
		text := item.Link + "\n" + item.Content + "\n" + item.Description
		for _, u := range ExtractStreamURLs(text) {
			candidates = append(candidates, Candidate{
				URL:         u,
				DisplayName: title,
				Source:      s.Name(),
			})
		}
	}

	s.logger.Info("フィード検索が完了しました",
		slog.String("feed_url", s.feedURL),
		slog.String("keyword", keyword),
		slog.Int("item_count", len(feed.Items)),
		slog.Int("candidate_count", len(candidates)))

	return candidates, nil
}
