package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/run-bigpig/roundtable/internal/models"
	"github.com/run-bigpig/roundtable/internal/pkg/paths"
	"github.com/spf13/viper"
)

// 默认模型接入（Anthropic 兼容接口）
const (
	DefaultBaseURL   = "https://api.minimaxi.com/anthropic"
	DefaultModelName = "MiniMax-M2.5"
	DefaultMaxTokens = 4096
)

// Config 应用配置
type Config struct {
	AI         models.AIConfig                   `mapstructure:"ai"`
	MCPServers map[string]models.MCPServerConfig `mapstructure:"mcp_servers"`
	Meeting    MeetingConfig                     `mapstructure:"meeting"`
	Search     SearchConfig                      `mapstructure:"search"`
	Logging    LoggingConfig                     `mapstructure:"logging"`
	Paths      PathsConfig                       `mapstructure:"paths"`
}

// MeetingConfig 讨论引擎参数
type MeetingConfig struct {
	DefaultRounds     int `mapstructure:"default_rounds"`
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
	// TurnTimeoutSeconds 单次发言超时（秒）
	TurnTimeoutSeconds int `mapstructure:"turn_timeout"`
	MaxRetries         int `mapstructure:"max_retries"`
	// RetryBaseDelayMs 重试基础间隔（毫秒），按指数退避
	RetryBaseDelayMs int `mapstructure:"retry_base_delay"`
}

// TurnTimeout 单次发言超时
func (c MeetingConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// RetryBaseDelay 重试基础间隔
func (c MeetingConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// SearchConfig 内置搜索配置（未配置 MCP 时使用）
type SearchConfig struct {
	Builtin         bool `mapstructure:"builtin"`
	CacheTTLMinutes int  `mapstructure:"cache_ttl"`
	MaxResults      int  `mapstructure:"max_results"`
}

// CacheTTL 搜索结果缓存时长
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File 非空时日志写入该文件而不是 stderr
	File string `mapstructure:"file"`
}

// PathsConfig 路径配置
type PathsConfig struct {
	// DataDir 为空时使用用户配置目录下的 roundtable
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir 返回实际数据目录
func (p PathsConfig) ResolveDataDir() string {
	if p.DataDir == "" {
		return paths.GetDataDir()
	}
	if strings.HasPrefix(p.DataDir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p.DataDir[2:])
		}
	}
	return p.DataDir
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		AI: models.AIConfig{
			Provider:  models.AIProviderAnthropic,
			BaseURL:   DefaultBaseURL,
			ModelName: DefaultModelName,
			MaxTokens: DefaultMaxTokens,
			Streaming: false,
		},
		MCPServers: map[string]models.MCPServerConfig{},
		Meeting: MeetingConfig{
			DefaultRounds:      models.DefaultRounds,
			MaxToolIterations:  8,
			TurnTimeoutSeconds: 90,
			MaxRetries:         2,
			RetryBaseDelayMs:   2000,
		},
		Search: SearchConfig{
			Builtin:         false,
			CacheTTLMinutes: 30,
			MaxResults:      5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults 向 viper 注册默认值
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("ai.provider", string(defaults.AI.Provider))
	viper.SetDefault("ai.base_url", defaults.AI.BaseURL)
	viper.SetDefault("ai.model", defaults.AI.ModelName)
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.max_tokens", defaults.AI.MaxTokens)
	viper.SetDefault("ai.streaming", defaults.AI.Streaming)

	viper.SetDefault("meeting.default_rounds", defaults.Meeting.DefaultRounds)
	viper.SetDefault("meeting.max_tool_iterations", defaults.Meeting.MaxToolIterations)
	viper.SetDefault("meeting.turn_timeout", defaults.Meeting.TurnTimeoutSeconds)
	viper.SetDefault("meeting.max_retries", defaults.Meeting.MaxRetries)
	viper.SetDefault("meeting.retry_base_delay", defaults.Meeting.RetryBaseDelayMs)

	viper.SetDefault("search.builtin", defaults.Search.Builtin)
	viper.SetDefault("search.cache_ttl", defaults.Search.CacheTTLMinutes)
	viper.SetDefault("search.max_results", defaults.Search.MaxResults)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", "")

	viper.SetDefault("paths.data_dir", "")
}

// Load 从 viper 读取配置
func Load() (*Config, error) {
	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize 补齐 map key 派生字段
func (c *Config) normalize() {
	if c.MCPServers == nil {
		c.MCPServers = map[string]models.MCPServerConfig{}
	}
	for id, srv := range c.MCPServers {
		srv.ID = id
		if srv.Name == "" {
			srv.Name = id
		}
		if srv.TransportType == "" {
			srv.TransportType = models.MCPTransportCommand
		}
		c.MCPServers[id] = srv
	}
	c.AI.Provider = models.AIProvider(strings.ToLower(string(c.AI.Provider)))
}

// EnabledMCPServers 返回启用的 MCP 服务器，按 ID 排序
func (c *Config) EnabledMCPServers() []models.MCPServerConfig {
	var out []models.MCPServerConfig
	for _, srv := range c.MCPServers {
		if srv.Enabled {
			out = append(out, srv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConfigDir 配置目录
func ConfigDir() string {
	return paths.GetConfigDir()
}

// ConfigFile 默认配置文件路径
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Set 修改单个配置项并写回配置文件
func Set(key string, value any) error {
	viper.Set(key, value)
	file := viper.ConfigFileUsed()
	if file == "" {
		file = ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := viper.WriteConfigAs(file); err != nil {
		return fmt.Errorf("写入配置失败: %w", err)
	}
	return nil
}
