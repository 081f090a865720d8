package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	userAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	fetchTimeout       = 15 * time.Second
)

// Fetcher 搜索引擎抓取器
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, query string, limit int) ([]Result, error)
}

// DuckDuckGoFetcher 抓取 DuckDuckGo HTML 版结果页
type DuckDuckGoFetcher struct {
	client   *http.Client
	endpoint string
}

// NewDuckDuckGoFetcher 创建抓取器，endpoint 为空时使用官方地址
func NewDuckDuckGoFetcher(client *http.Client, endpoint string) *DuckDuckGoFetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	return &DuckDuckGoFetcher{client: client, endpoint: endpoint}
}

func (f *DuckDuckGoFetcher) Name() string { return "duckduckgo" }

// Fetch 执行搜索并解析结果
func (f *DuckDuckGoFetcher) Fetch(ctx context.Context, query string, limit int) ([]Result, error) {
	u := f.endpoint + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求搜索引擎失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("搜索引擎返回状态码 %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}
	return parseResults(doc, limit), nil
}

// parseResults 提取 .result 条目，跳过广告
func parseResults(doc *goquery.Document, limit int) []Result {
	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results
}

// resolveRedirect 还原 /l/?uddg= 跳转链接
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
