// Package mcp 管理外部 MCP 工具服务器的连接与调用
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/models"
)

var log = logger.New("mcp")

const (
	clientName    = "roundtable"
	clientVersion = "1.0.0"
	// connectTimeout 连接与握手超时
	connectTimeout = 10 * time.Second
)

var ErrNoServer = errors.New("no MCP server configured")

// ServerStatus MCP 服务器状态
type ServerStatus struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
	Error     string `json:"error"`
}

// ToolInfo MCP 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ServerID    string `json:"serverId"`
	ServerName  string `json:"serverName"`
}

// TransportFactory 根据配置创建传输层
type TransportFactory func(cfg models.MCPServerConfig) mcp.Transport

// Manager MCP 客户端管理器
// 工具调用只发往第一个启用的服务器（按 ID 排序），会话按需建立并复用
type Manager struct {
	mu           sync.Mutex
	configs      []models.MCPServerConfig
	sessions     map[string]*mcp.ClientSession
	newTransport TransportFactory
}

// Option Manager 选项
type Option func(*Manager)

// WithTransportFactory 替换传输层创建方式
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) {
		m.newTransport = f
	}
}

// NewManager 创建 MCP 管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:     make(map[string]*mcp.ClientSession),
		newTransport: createTransport,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadConfigs 加载服务器配置，只保留启用项，已有会话全部关闭
func (m *Manager) LoadConfigs(configs []models.MCPServerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeSessionsLocked()
	m.configs = m.configs[:0]
	for _, cfg := range configs {
		if cfg.Enabled {
			m.configs = append(m.configs, cfg)
		}
	}
	sort.Slice(m.configs, func(i, j int) bool { return m.configs[i].ID < m.configs[j].ID })
	log.Info("已加载 %d 个 MCP 服务器", len(m.configs))
}

// HasServers 是否存在启用的服务器
func (m *Manager) HasServers() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs) > 0
}

// createTransport 根据配置创建 MCP 传输层
func createTransport(cfg models.MCPServerConfig) mcp.Transport {
	switch cfg.TransportType {
	case models.MCPTransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.Endpoint}
	case models.MCPTransportHTTP:
		return &mcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	default:
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		return &mcp.CommandTransport{Command: cmd}
	}
}

// connect 建立新会话
func (m *Manager) connect(ctx context.Context, cfg models.MCPServerConfig) (*mcp.ClientSession, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, m.newTransport(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("连接 MCP 服务器 %s 失败: %w", cfg.ID, err)
	}
	return session, nil
}

// session 返回可复用的会话
func (m *Manager) session(ctx context.Context, cfg models.MCPServerConfig) (*mcp.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[cfg.ID]; ok {
		return s, nil
	}
	s, err := m.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.sessions[cfg.ID] = s
	return s, nil
}

// dropSession 调用失败后丢弃会话，下次重连
func (m *Manager) dropSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		_ = s.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) primary() (models.MCPServerConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.configs) == 0 {
		return models.MCPServerConfig{}, false
	}
	return m.configs[0], true
}

// CallTool 在第一个服务器上调用工具，返回文本内容
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	cfg, ok := m.primary()
	if !ok {
		return "", ErrNoServer
	}

	session, err := m.session(ctx, cfg)
	if err != nil {
		return "", err
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		m.dropSession(cfg.ID)
		return "", fmt.Errorf("调用 MCP 工具 %s 失败: %w", name, err)
	}

	text := joinTextContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("MCP 工具 %s 返回错误: %s", name, text)
	}
	if text == "" {
		return "No response from MCP server", nil
	}
	return text, nil
}

// joinTextContent 拼接结果中的文本块
func joinTextContent(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (m *Manager) config(id string) (models.MCPServerConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range m.configs {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return models.MCPServerConfig{}, false
}

// TestConnection 测试指定服务器的连接
func (m *Manager) TestConnection(ctx context.Context, serverID string) *ServerStatus {
	cfg, ok := m.config(serverID)
	if !ok {
		return &ServerStatus{ID: serverID, Error: "服务器未配置"}
	}

	session, err := m.connect(ctx, cfg)
	if err != nil {
		return &ServerStatus{ID: serverID, Error: err.Error()}
	}
	_ = session.Close()
	return &ServerStatus{ID: serverID, Connected: true}
}

// GetServerTools 获取指定服务器的工具列表
func (m *Manager) GetServerTools(ctx context.Context, serverID string) ([]ToolInfo, error) {
	cfg, ok := m.config(serverID)
	if !ok {
		return nil, ErrNoServer
	}

	session, err := m.session(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := session.ListTools(ctx, nil)
	if err != nil {
		m.dropSession(cfg.ID)
		return nil, err
	}

	tools := make([]ToolInfo, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			ServerID:    serverID,
			ServerName:  cfg.Name,
		})
	}
	return tools, nil
}

// Close 关闭所有会话
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeSessionsLocked()
}

func (m *Manager) closeSessionsLocked() {
	for id, s := range m.sessions {
		_ = s.Close()
		delete(m.sessions, id)
	}
}
