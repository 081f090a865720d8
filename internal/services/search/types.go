package search

import "time"

// Result 单条搜索结果
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response 一次搜索的结果集
type Response struct {
	Query     string    `json:"query"`
	Results   []Result  `json:"results"`
	UpdatedAt time.Time `json:"updated_at"`
	FromCache bool      `json:"from_cache"`
}
