package adk

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/roundtable/internal/models"
)

// scriptedLLM 按顺序返回预设响应，并记录收到的请求
type scriptedLLM struct {
	responses [][]*model.LLMResponse
	err       error
	requests  []*model.LLMRequest
	streamed  []bool
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	s.requests = append(s.requests, req)
	s.streamed = append(s.streamed, stream)
	return func(yield func(*model.LLMResponse, error) bool) {
		if s.err != nil {
			yield(nil, s.err)
			return
		}
		idx := len(s.requests) - 1
		if idx >= len(s.responses) {
			idx = len(s.responses) - 1
		}
		for _, r := range s.responses[idx] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func textResponse(text string) []*model.LLMResponse {
	return []*model.LLMResponse{{
		Content:       &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "思考", Thought: true}, {Text: text}}},
		FinishReason:  genai.FinishReasonStop,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 2},
	}}
}

func callResponse(id string) []*model.LLMResponse {
	return []*model.LLMResponse{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{
			FunctionCall: &genai.FunctionCall{ID: id, Name: "web_search", Args: map[string]any{"query": "今年"}},
		}}},
		FinishReason:  genai.FinishReasonStop,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 1},
	}}
}

type fakeTools struct {
	calls []string
	err   error
}

func (f *fakeTools) Declarations(names []string) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, n := range names {
		decls = append(decls, &genai.FunctionDeclaration{Name: n, ParametersJsonSchema: map[string]any{"type": "object"}})
	}
	return decls
}

func (f *fakeTools) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return "2026年", nil
}

func TestGenerateWithoutTools(t *testing.T) {
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{textResponse("我同意")}}
	g := NewGateway(llm)

	res, err := g.Generate(context.Background(), GenerateRequest{
		SystemPrompt: "系统",
		UserPrompt:   "主题",
		Temperature:  0.5,
	})
	if err != nil {
		t.Fatalf("Generate() 失败: %v", err)
	}
	if res.Text != "我同意" {
		t.Errorf("Text = %q, 思考内容应被跳过", res.Text)
	}
	if res.StopReason != StopReasonEndTurn {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 2 {
		t.Errorf("Usage = %+v", res.Usage)
	}

	req := llm.requests[0]
	if req.Config.SystemInstruction.Parts[0].Text != "系统" {
		t.Error("系统提示词未传递")
	}
	if *req.Config.Temperature != 0.5 || req.Config.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("配置 = 温度 %v, 最大 token %d", *req.Config.Temperature, req.Config.MaxOutputTokens)
	}
	if len(req.Config.Tools) != 0 {
		t.Error("未请求工具时不应声明工具")
	}
}

func TestGenerateToolLoop(t *testing.T) {
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{callResponse("c1"), textResponse("基于搜索，我同意")}}
	tools := &fakeTools{}
	g := NewGateway(llm, WithToolExecutor(tools))

	res, err := g.Generate(context.Background(), GenerateRequest{UserPrompt: "今年的情况", Tools: []string{"web_search"}})
	if err != nil {
		t.Fatalf("Generate() 失败: %v", err)
	}
	if res.Text != "基于搜索，我同意" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(tools.calls) != 1 {
		t.Errorf("工具调用 = %v, 期望 1", tools.calls)
	}
	if res.Usage.InputTokens != 15 {
		t.Errorf("用量应在多轮迭代间累加: %+v", res.Usage)
	}

	second := llm.requests[1]
	if len(second.Contents) != 3 {
		t.Fatalf("重新提交的内容数 = %d, 期望 3", len(second.Contents))
	}
	fr := second.Contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.ID != "c1" || fr.Response["output"] != "2026年" {
		t.Errorf("函数响应 = %+v", fr)
	}
	if len(second.Config.Tools) != 1 {
		t.Error("每轮迭代都应声明工具")
	}
}

func TestGenerateToolError(t *testing.T) {
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{callResponse("c1"), textResponse("ok")}}
	g := NewGateway(llm, WithToolExecutor(&fakeTools{err: errors.New("timeout")}))

	if _, err := g.Generate(context.Background(), GenerateRequest{UserPrompt: "x", Tools: []string{"web_search"}}); err != nil {
		t.Fatalf("Generate() 失败: %v", err)
	}
	fr := llm.requests[1].Contents[2].Parts[0].FunctionResponse
	if msg, _ := fr.Response["error"].(string); !strings.Contains(msg, "Tool execution error: timeout") {
		t.Errorf("错误响应 = %+v", fr.Response)
	}
}

func TestGenerateToolLimit(t *testing.T) {
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{callResponse("loop")}}
	tools := &fakeTools{}
	g := NewGateway(llm, WithToolExecutor(tools), WithMaxToolIterations(2))

	res, err := g.Generate(context.Background(), GenerateRequest{UserPrompt: "x", Tools: []string{"web_search"}})
	if err != nil {
		t.Fatalf("Generate() 失败: %v", err)
	}
	if res.StopReason != StopReasonToolLimit {
		t.Errorf("StopReason = %q, 期望 tool_limit", res.StopReason)
	}
	if len(tools.calls) != 2 || len(llm.requests) != 3 {
		t.Errorf("工具调用 = %d, 模型调用 = %d", len(tools.calls), len(llm.requests))
	}
}

func TestGenerateError(t *testing.T) {
	g := NewGateway(&scriptedLLM{err: errors.New("unauthorized")})
	if _, err := g.Generate(context.Background(), GenerateRequest{UserPrompt: "x"}); err == nil {
		t.Fatal("期望返回后端错误")
	}
}

func TestGenerateStreamReplay(t *testing.T) {
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{textResponse("你好")}}
	g := NewGateway(llm)

	var chunks []string
	res, err := g.GenerateStream(context.Background(), GenerateRequest{UserPrompt: "x"}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "你好" || strings.Join(chunks, "|") != "你|好" {
		t.Errorf("增量片段 = %v, 文本 = %q", chunks, res.Text)
	}
	if llm.streamed[0] {
		t.Error("不支持流式的后端不应以流式调用")
	}
}

func TestGenerateStreamIncremental(t *testing.T) {
	partial := func(s string) *model.LLMResponse {
		return &model.LLMResponse{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}}, Partial: true}
	}
	llm := &scriptedLLM{responses: [][]*model.LLMResponse{{
		partial("主题"), partial("清晰"),
		{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "主题清晰"}}}, FinishReason: genai.FinishReasonStop},
	}}}
	g := NewGateway(llm, WithStreaming(true))

	var chunks []string
	res, err := g.GenerateStream(context.Background(), GenerateRequest{UserPrompt: "x"}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !llm.streamed[0] {
		t.Error("支持流式的后端应以流式调用")
	}
	if strings.Join(chunks, "|") != "主题|清晰" || res.Text != "主题清晰" {
		t.Errorf("增量片段 = %v, 文本 = %q", chunks, res.Text)
	}
}

func TestModelFactoryProviders(t *testing.T) {
	f := NewModelFactory()
	for _, p := range []models.AIProvider{models.AIProviderAnthropic, models.AIProviderOpenAI, ""} {
		llm, err := f.CreateModel(context.Background(), &models.AIConfig{Provider: p, ModelName: "m", APIKey: "k"})
		if err != nil {
			t.Fatalf("CreateModel(%q) 失败: %v", p, err)
		}
		if llm.Name() != "m" {
			t.Errorf("Name() = %q", llm.Name())
		}
	}
	if _, err := f.CreateModel(context.Background(), &models.AIConfig{Provider: "bogus"}); err == nil {
		t.Error("未知提供商应返回错误")
	}
}
