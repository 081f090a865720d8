package search

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CacheEntry 缓存条目
type CacheEntry struct {
	Query     string    `json:"query"`
	Results   []Result  `json:"results"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileCache 以查询词为键的文件缓存
type FileCache struct {
	cacheDir string
	ttl      time.Duration
	mu       sync.RWMutex
	now      func() time.Time
}

// NewFileCache 创建文件缓存
func NewFileCache(cacheDir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{
		cacheDir: cacheDir,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// cacheFilePath 查询词归一化后取 sha1 作为文件名
func (c *FileCache) cacheFilePath(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".json")
}

// Get 获取未过期的缓存结果
func (c *FileCache) Get(query string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.cacheFilePath(query))
	if err != nil {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if c.now().Sub(entry.UpdatedAt) > c.ttl {
		return nil, false
	}
	return &entry, true
}

// Set 写入缓存
func (c *FileCache) Set(query string, results []Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(CacheEntry{
		Query:     query,
		Results:   results,
		UpdatedAt: c.now(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(c.cacheFilePath(query), data, 0644)
}
