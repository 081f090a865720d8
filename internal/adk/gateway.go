package adk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/roundtable/internal/logger"
)

var log = logger.New("adk:gateway")

const (
	// DefaultMaxToolIterations 单次生成中工具调用的最大往返次数
	DefaultMaxToolIterations = 8
	DefaultMaxOutputTokens   = 4096
)

// 停止原因
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
	StopReasonSafety    = "safety"
	StopReasonToolUse   = "tool_use"
	StopReasonToolLimit = "tool_limit"
	StopReasonUnknown   = "unknown"
)

var ErrEmptyResponse = errors.New("model returned no response")

// ToolExecutor 工具声明与执行
type ToolExecutor interface {
	Declarations(names []string) []*genai.FunctionDeclaration
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// GenerateRequest 一次单轮生成请求
type GenerateRequest struct {
	SystemPrompt    string
	UserPrompt      string
	Tools           []string
	MaxOutputTokens int
	Temperature     float32
}

// Usage token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// Gateway 模型网关：单轮对话 + 工具循环
type Gateway struct {
	llm               model.LLM
	tools             ToolExecutor
	maxToolIterations int
	streaming         bool
}

// GatewayOption Gateway 选项
type GatewayOption func(*Gateway)

// WithToolExecutor 设置工具执行器
func WithToolExecutor(t ToolExecutor) GatewayOption {
	return func(g *Gateway) { g.tools = t }
}

// WithMaxToolIterations 设置工具循环上限
func WithMaxToolIterations(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxToolIterations = n
		}
	}
}

// WithStreaming 后端是否支持增量输出
func WithStreaming(enabled bool) GatewayOption {
	return func(g *Gateway) { g.streaming = enabled }
}

// NewGateway 创建模型网关
func NewGateway(llm model.LLM, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		llm:               llm,
		maxToolIterations: DefaultMaxToolIterations,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModelName 返回底层模型名称
func (g *Gateway) ModelName() string {
	return g.llm.Name()
}

// Generate 发送一轮对话，模型请求工具时执行并回填结果，直到没有工具调用或达到上限
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	config := g.buildConfig(req)
	contents := []*genai.Content{userContent(req.UserPrompt)}
	result := &GenerateResult{}

	for iteration := 0; ; iteration++ {
		resp, err := g.collect(ctx, contents, config, false, nil)
		if err != nil {
			return nil, err
		}
		addUsage(&result.Usage, resp.UsageMetadata)
		result.Text = responseText(resp.Content)

		calls := functionCalls(resp.Content)
		if len(calls) == 0 || g.tools == nil {
			result.StopReason = stopReason(resp.FinishReason)
			return result, nil
		}
		if iteration >= g.maxToolIterations {
			log.Warn("工具调用超过上限 %d 次，停止循环", g.maxToolIterations)
			result.StopReason = StopReasonToolLimit
			return result, nil
		}

		contents = append(contents, resp.Content, g.executeCalls(ctx, calls))
	}
}

// GenerateStream 与 Generate 相同，但通过 onChunk 增量输出文本
// 带工具或后端不支持流式时，先完整生成再逐字回放
func (g *Gateway) GenerateStream(ctx context.Context, req GenerateRequest, onChunk func(string)) (*GenerateResult, error) {
	if onChunk == nil {
		return g.Generate(ctx, req)
	}

	if !g.streaming || len(req.Tools) > 0 {
		result, err := g.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		replay(result.Text, onChunk)
		return result, nil
	}

	streamed := false
	resp, err := g.collect(ctx, []*genai.Content{userContent(req.UserPrompt)}, g.buildConfig(req), true, func(s string) {
		streamed = true
		onChunk(s)
	})
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{
		Text:       responseText(resp.Content),
		StopReason: stopReason(resp.FinishReason),
	}
	addUsage(&result.Usage, resp.UsageMetadata)
	if !streamed {
		replay(result.Text, onChunk)
	}
	return result, nil
}

func (g *Gateway) buildConfig(req GenerateRequest) *genai.GenerateContentConfig {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if g.tools != nil && len(req.Tools) > 0 {
		if decls := g.tools.Declarations(req.Tools); len(decls) > 0 {
			config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}
	}
	return config
}

// collect 消费一次 GenerateContent 调用，返回最终（非 partial）响应
// partial 响应的非 thought 文本交给 onPartial
func (g *Gateway) collect(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, stream bool, onPartial func(string)) (*model.LLMResponse, error) {
	req := &model.LLMRequest{
		Model:    g.llm.Name(),
		Contents: contents,
		Config:   config,
	}

	var final *model.LLMResponse
	var partialText strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, req, stream) {
		if err != nil {
			return nil, err
		}
		if resp == nil {
			continue
		}
		if resp.Partial {
			text := responseText(resp.Content)
			partialText.WriteString(text)
			if onPartial != nil && text != "" {
				onPartial(text)
			}
			continue
		}
		final = resp
	}

	if final == nil {
		if partialText.Len() == 0 {
			return nil, ErrEmptyResponse
		}
		final = &model.LLMResponse{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: partialText.String()}}}}
	}
	if final.Content == nil {
		final.Content = &genai.Content{Role: "model"}
	}
	if final.Content.Role == "" {
		final.Content.Role = "model"
	}
	return final, nil
}

// executeCalls 依次执行工具调用，结果按调用 ID 回填
func (g *Gateway) executeCalls(ctx context.Context, calls []*genai.FunctionCall) *genai.Content {
	content := &genai.Content{Role: "user"}
	for _, call := range calls {
		response := map[string]any{}
		out, err := g.tools.Execute(ctx, call.Name, call.Args)
		if err != nil {
			log.Warn("工具 %s 执行失败: %v", call.Name, err)
			response["error"] = fmt.Sprintf("Tool execution error: %v", err)
		} else {
			response["output"] = out
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{ID: call.ID, Name: call.Name, Response: response},
		})
	}
	return content
}

func userContent(text string) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}}
}

// responseText 拼接非 thought 文本
func responseText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func functionCalls(content *genai.Content) []*genai.FunctionCall {
	if content == nil {
		return nil
	}
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

func addUsage(u *Usage, meta *genai.GenerateContentResponseUsageMetadata) {
	if meta == nil {
		return
	}
	u.InputTokens += int(meta.PromptTokenCount)
	u.OutputTokens += int(meta.CandidatesTokenCount)
}

func stopReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return StopReasonMaxTokens
	case genai.FinishReasonSafety:
		return StopReasonSafety
	default:
		return StopReasonUnknown
	}
}

// replay 逐字回放文本
func replay(text string, onChunk func(string)) {
	for _, r := range text {
		onChunk(string(r))
	}
}
