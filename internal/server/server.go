// Package server 以 MCP stdio 服务的形式对外暴露角色与会议管理
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/meeting"
	"github.com/run-bigpig/roundtable/internal/persona"
)

var log = logger.New("server")

// ServerName MCP 服务名
const ServerName = "roundtable"

// Server 圆桌会议 MCP 服务
type Server struct {
	personas *persona.Store
	meetings *meeting.Store
	engine   *meeting.Service
	mcp      *mcp.Server
}

// New 创建服务并注册全部工具
func New(personas *persona.Store, engine *meeting.Service, version string) *Server {
	s := &Server{
		personas: personas,
		meetings: engine.Store(),
		engine:   engine,
		mcp:      mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}
	s.registerPersonaTools()
	s.registerMeetingTools()
	return s
}

// MCPServer 返回底层 MCP 服务，测试中用于内存传输
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run 在 stdin/stdout 上服务，直到客户端断开或 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	log.Info("MCP 服务启动 (stdio)")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// textHandler 工具处理函数：业务校验失败以文本返回，只有意外错误返回 error
type textHandler[In any] func(ctx context.Context, in In) (string, error)

// addTool 注册工具，处理函数的 panic 转为工具错误，不影响进程
func addTool[In any](s *Server, name, description string, h textHandler[In]) {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, req *mcp.CallToolRequest, in In) (result *mcp.CallToolResult, _ any, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("tool %s panic: %v\n%s", name, r, debug.Stack())
					result, err = nil, fmt.Errorf("internal error: %v", r)
				}
			}()
			log.Debug("tool call: %s", name)
			text, err := h(ctx, in)
			if err != nil {
				log.Error("tool %s failed: %v", name, err)
				return nil, nil, err
			}
			return textResult(text), nil, nil
		})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// failure 操作失败的文本结果，附带原因
func failure(prefix string, err error) string {
	return fmt.Sprintf("%s: %v", prefix, err)
}
