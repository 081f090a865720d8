package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/pkg/paths"
)

var log = logger.New("search")

// Service 内置网络搜索，结果带文件缓存
type Service struct {
	fetcher    Fetcher
	cache      *FileCache
	maxResults int
}

// NewService 创建搜索服务，缓存目录为 <dataDir>/cache/search
func NewService(dataDir string, ttl time.Duration, maxResults int, fetcher Fetcher) (*Service, error) {
	cache, err := NewFileCache(paths.EnsureCacheDir(dataDir, "search"), ttl)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = NewDuckDuckGoFetcher(nil, "")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Service{fetcher: fetcher, cache: cache, maxResults: maxResults}, nil
}

// Search 先查缓存，未命中再请求搜索引擎
func (s *Service) Search(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("搜索关键词为空")
	}

	if entry, ok := s.cache.Get(query); ok {
		log.Debug("缓存命中: %s", query)
		return &Response{Query: query, Results: entry.Results, UpdatedAt: entry.UpdatedAt, FromCache: true}, nil
	}

	results, err := s.fetcher.Fetch(ctx, query, s.maxResults)
	if err != nil {
		log.Warn("%s 搜索失败: %v", s.fetcher.Name(), err)
		return nil, err
	}
	if err := s.cache.Set(query, results); err != nil {
		log.Warn("写入搜索缓存失败: %v", err)
	}
	log.Info("%s 搜索完成: %s, %d 条结果", s.fetcher.Name(), query, len(results))
	return &Response{Query: query, Results: results, UpdatedAt: time.Now()}, nil
}

// Format 将结果整理成模型可读的文本
func (r *Response) Format() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("未找到与「%s」相关的结果", r.Query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "搜索「%s」结果:\n", r.Query)
	for i, item := range r.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, item.Title, item.URL)
		if item.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", item.Snippet)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
