package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/streamhunter/internal/security"
)

// maxSearchBodySize は検索結果ページの最大読み込みサイズ。
const maxSearchBodySize = 2 * 1024 * 1024

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// SearchPageSource はIPTV検索サイトの結果ページをスクレイピングするソース。
// 結果カードのセレクタで候補を抽出し、カードが見つからない場合は
// ページ全体のテキストから配信URLを正規表現で抽出するフォールバックを持つ。
type SearchPageSource struct {
	name       string
	searchURL  string // キーワードを埋め込む前の検索URL
	queryParam string // キーワードを渡すクエリパラメータ名
	// cardSelector は結果カードのCSSセレクタ。
	// nameSelector/linkSelector はカード内のチャンネル名と配信URLのセレクタ。
	cardSelector string
	nameSelector string
	linkSelector string

	ssrfGuard SSRFValidator
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	userAgent string
	timeout   time.Duration
}

// SearchPageConfig はSearchPageSourceの構築パラメータ。
type SearchPageConfig struct {
	Name         string
	SearchURL    string
	QueryParam   string
	CardSelector string
	NameSelector string
	LinkSelector string
	UserAgent    string
	Timeout      time.Duration
}

// NewSearchPageSource は新しいSearchPageSourceを生成する。
func NewSearchPageSource(
	cfg SearchPageConfig,
	ssrfGuard SSRFValidator,
	sanitizer security.TextSanitizerService,
	logger *slog.Logger,
) *SearchPageSource {
	return &SearchPageSource{
		name:         cfg.Name,
		searchURL:    cfg.SearchURL,
		queryParam:   cfg.QueryParam,
		cardSelector: cfg.CardSelector,
		nameSelector: cfg.NameSelector,
		linkSelector: cfg.LinkSelector,
		ssrfGuard:    ssrfGuard,
		sanitizer:    sanitizer,
		logger:       logger,
		userAgent:    cfg.UserAgent,
		timeout:      cfg.Timeout,
	}
}

// Name はソースの識別子を返す。
func (s *SearchPageSource) Name() string {
	return s.name
}

// Search はキーワードで検索サイトを照会し、配信候補を抽出する。
// チャンネル名がキーワードに一致しない候補と、配信URLとして
// 不正な候補は除外される。
func (s *SearchPageSource) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	reqURL, err := s.buildSearchURL(keyword)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("検索リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	client := s.ssrfGuard.NewSafeClient(s.timeout)
	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("検索サイトへのリクエストに失敗しました",
			slog.String("source", s.name),
			slog.String("keyword", keyword),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("検索サイトがエラーステータスを返しました",
			slog.String("source", s.name),
			slog.String("keyword", keyword),
			slog.Int("http_status", resp.StatusCode))
		return nil, fmt.Errorf("検索サイトがステータス %d を返しました", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("検索結果のHTMLパースに失敗しました: %w", err)
	}

	candidates := s.parseCards(doc, keyword)
	if len(candidates) == 0 {
		// 結果カードが見つからない場合はページ全体のテキストから抽出する
		candidates = s.extractFromText(doc, keyword)
	}

	s.logger.Info("検索が完了しました",
		slog.String("source", s.name),
		slog.String("keyword", keyword),
		slog.Int("candidate_count", len(candidates)))

	return candidates, nil
}

// buildSearchURL はキーワードをクエリパラメータに埋め込んだ検索URLを構築する。
func (s *SearchPageSource) buildSearchURL(keyword string) (string, error) {
	u, err := url.Parse(s.searchURL)
	if err != nil {
		return "", fmt.Errorf("検索URLのパースに失敗しました: %w", err)
	}
	q := u.Query()
	q.Set(s.queryParam, keyword)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseCards は結果カードのセレクタで候補を抽出する。
func (s *SearchPageSource) parseCards(doc *goquery.Document, keyword string) []Candidate {
	var candidates []Candidate

	doc.Find(s.cardSelector).Each(func(_ int, card *goquery.Selection) {
		// テキストではなく内側のHTMLをサニタイズする。
		// Text()はscriptタグの中身まで含めてしまう
		rawName, err := card.Find(s.nameSelector).First().Html()
		if err != nil {
			return
		}
		name := s.sanitizer.Sanitize(rawName)
		if name == "" {
			return
		}
		if !MatchesKeyword(name, keyword) {
			return
		}

		linkText := card.Find(s.linkSelector).First().Text()
		urls := ExtractStreamURLs(linkText)
		if len(urls) == 0 {
			// カード内のテキスト全体から抽出を試みる
			urls = ExtractStreamURLs(card.Text())
		}
		if len(urls) == 0 {
			// テキストに現れないリンクはhref/src属性から拾う
			urls = ExtractStreamURLsFromNodes(card.Nodes)
		}

		for _, u := range urls {
			candidates = append(candidates, Candidate{
				URL:         u,
				DisplayName: name,
				Source:      s.name,
			})
		}
	})

	return candidates
}

// extractFromText はページ全体のテキストから配信URLを抽出するフォールバック。
// サイトのマークアップ変更でセレクタが一致しなくなっても候補を拾える。
func (s *SearchPageSource) extractFromText(doc *goquery.Document, keyword string) []Candidate {
	urls := ExtractStreamURLs(doc.Text())
	if len(urls) == 0 {
		urls = ExtractStreamURLsFromNodes(doc.Selection.Nodes)
	}
	candidates := make([]Candidate, 0, len(urls))
	for _, u := range urls {
		candidates = append(candidates, Candidate{
			URL:    u,
			Source: s.name,
		})
	}
	if len(candidates) > 0 {
		s.logger.Debug("セレクタ不一致のためテキスト抽出にフォールバックしました",
			slog.String("source", s.name),
			slog.String("keyword", keyword),
			slog.Int("url_count", len(candidates)))
	}
	return candidates
}
