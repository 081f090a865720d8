package tools

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/services/search"
)

var log = logger.New("tools")

// MCPCaller 外部 MCP 工具服务
type MCPCaller interface {
	HasServers() bool
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// WebSearcher 内置搜索
type WebSearcher interface {
	Search(ctx context.Context, query string) (*search.Response, error)
}

// Definition 工具定义
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Registry 工具注册表，负责声明与执行
// 执行顺序：已配置 MCP 服务器 → 内置搜索 → 不可用提示
type Registry struct {
	definitions map[string]Definition
	mcp         MCPCaller
	searcher    WebSearcher
}

// NewRegistry 创建工具注册表，mcp 与 searcher 均可为 nil
func NewRegistry(mcp MCPCaller, searcher WebSearcher) *Registry {
	r := &Registry{
		definitions: make(map[string]Definition),
		mcp:         mcp,
		searcher:    searcher,
	}
	r.register(WebSearchDefinition)
	return r
}

func (r *Registry) register(def Definition) {
	r.definitions[def.Name] = def
}

// Definition 按名称查找工具定义
func (r *Registry) Definition(name string) (Definition, bool) {
	def, ok := r.definitions[name]
	return def, ok
}

// Declarations 生成模型请求中的函数声明，未知名称忽略
func (r *Registry) Declarations(names []string) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, name := range names {
		def, ok := r.definitions[name]
		if !ok {
			log.Warn("未知工具: %s", name)
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 def.Name,
			Description:          def.Description,
			ParametersJsonSchema: def.InputSchema,
		})
	}
	return decls
}

// Execute 执行一次工具调用
// 返回的 error 表示执行失败，调用方应将其作为错误结果回传给模型
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	log.Info("调用工具 %s, args=%v", name, args)

	if r.mcp != nil && r.mcp.HasServers() {
		return r.mcp.CallTool(ctx, name, args)
	}

	if name == WebSearchToolName && r.searcher != nil {
		return r.webSearch(ctx, args)
	}

	return fmt.Sprintf("Tool '%s' not available - no MCP server configured", name), nil
}

// GenerateSchema 由结构体生成 JSON Schema
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
