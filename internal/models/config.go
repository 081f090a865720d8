package models

// AIProvider AI 服务提供商
type AIProvider string

const (
	AIProviderAnthropic AIProvider = "anthropic" // Anthropic 兼容接口（默认）
	AIProviderOpenAI    AIProvider = "openai"    // OpenAI 兼容接口
	AIProviderGemini    AIProvider = "gemini"    // Google Gemini
)

// AIConfig AI 服务配置
type AIConfig struct {
	Provider  AIProvider `json:"provider" mapstructure:"provider"`
	BaseURL   string     `json:"baseUrl" mapstructure:"base_url"`
	APIKey    string     `json:"apiKey" mapstructure:"api_key"`
	ModelName string     `json:"model" mapstructure:"model"`
	MaxTokens int        `json:"maxTokens" mapstructure:"max_tokens"`
	Streaming bool       `json:"streaming" mapstructure:"streaming"` // 后端是否支持增量输出
}

// MCPTransportType MCP 传输类型
type MCPTransportType string

const (
	MCPTransportCommand MCPTransportType = "command" // 子进程 stdio
	MCPTransportSSE     MCPTransportType = "sse"
	MCPTransportHTTP    MCPTransportType = "http" // streamable http
)

// MCPServerConfig MCP 服务器配置
type MCPServerConfig struct {
	ID            string            `json:"id" mapstructure:"-"`
	Name          string            `json:"name" mapstructure:"name"`
	Enabled       bool              `json:"enabled" mapstructure:"enabled"`
	TransportType MCPTransportType  `json:"transport" mapstructure:"transport"`
	Endpoint      string            `json:"endpoint" mapstructure:"endpoint"`
	Command       string            `json:"command" mapstructure:"command"`
	Args          []string          `json:"args" mapstructure:"args"`
	Env           map[string]string `json:"env" mapstructure:"env"`
}
