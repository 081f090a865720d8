package tools

import (
	"context"
	"fmt"
)

// WebSearchToolName 讨论中唯一提供给角色的工具
const WebSearchToolName = "web_search"

// WebSearchInput web_search 输入参数
type WebSearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query"`
}

var WebSearchDefinition = Definition{
	Name:        WebSearchToolName,
	Description: "Search the web for current information, news, and facts. Use this when you need up-to-date information.",
	InputSchema: GenerateSchema[WebSearchInput](),
}

// webSearch 使用内置搜索服务
func (r *Registry) webSearch(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "请提供搜索关键词", nil
	}

	resp, err := r.searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	log.Info("web_search 完成, %d 条结果", len(resp.Results))
	return resp.Format(), nil
}
