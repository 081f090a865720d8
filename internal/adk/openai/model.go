package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/roundtable/internal/logger"
)

var modelLog = logger.New("openai:model")

var _ model.LLM = &Model{}

var (
	ErrNoChoicesInResponse = errors.New("no choices in OpenAI response")
)

// Model 基于 Chat Completions 接口的 model.LLM 实现
type Model struct {
	client    *openai.Client
	modelName string
}

// New 创建 OpenAI 兼容模型
func New(modelName string, cfg openai.ClientConfig) *Model {
	return &Model{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
	}
}

// Name 返回模型名称
func (m *Model) Name() string {
	return m.modelName
}

// GenerateContent 实现 model.LLM 接口
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return m.generate(ctx, req)
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatCompletionRequest(req, m.modelName)
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := m.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}

		llmResp, err := fromChatCompletionResponse(&resp)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(llmResp, nil)
	}
}

func (m *Model) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatCompletionRequest(req, m.modelName)
		if err != nil {
			yield(nil, err)
			return
		}
		chatReq.Stream = true
		chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := m.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer stream.Close()

		acc := newStreamAccumulator()
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				modelLog.Warn("流式读取中断: %v", err)
				yield(nil, fmt.Errorf("流式读取错误: %w", err))
				return
			}
			for _, partial := range acc.add(chunk) {
				if !yield(partial, nil) {
					return
				}
			}
		}
		yield(acc.final(), nil)
	}
}

// streamAccumulator 聚合流式增量，结束时产出完整响应
type streamAccumulator struct {
	text         string
	reasoning    string
	toolCalls    map[int]*toolCallBuilder
	order        []int
	finishReason genai.FinishReason
	usage        *genai.GenerateContentResponseUsageMetadata
}

// toolCallBuilder 按 index 拼接工具调用参数片段
type toolCallBuilder struct {
	id   string
	name string
	args string
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{toolCalls: make(map[int]*toolCallBuilder)}
}

// add 吸收一个 chunk，返回需要立即下发的增量响应
func (a *streamAccumulator) add(chunk openai.ChatCompletionStreamResponse) []*model.LLMResponse {
	if chunk.Usage != nil {
		a.usage = usageMetadata(*chunk.Usage)
	}
	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	var out []*model.LLMResponse

	if d := choice.Delta.ReasoningContent; d != "" {
		a.reasoning += d
		out = append(out, partialResponse(&genai.Part{Text: d, Thought: true}))
	}
	if d := choice.Delta.Content; d != "" {
		a.text += d
		out = append(out, partialResponse(&genai.Part{Text: d}))
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		b, ok := a.toolCalls[idx]
		if !ok {
			b = &toolCallBuilder{}
			a.toolCalls[idx] = b
			a.order = append(a.order, idx)
		}
		if tc.ID != "" {
			b.id = tc.ID
		}
		if tc.Function.Name != "" {
			b.name = tc.Function.Name
		}
		b.args += tc.Function.Arguments
	}

	if choice.FinishReason != "" {
		a.finishReason = convertFinishReason(string(choice.FinishReason))
	}
	return out
}

// final 生成聚合后的完整响应
func (a *streamAccumulator) final() *model.LLMResponse {
	content := &genai.Content{Role: "model"}
	if a.reasoning != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: a.reasoning, Thought: true})
	}
	if a.text != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: a.text})
	}
	for _, idx := range a.order {
		b := a.toolCalls[idx]
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   b.id,
				Name: b.name,
				Args: parseJSONArgs(b.args),
			},
		})
	}
	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: a.usage,
		FinishReason:  a.finishReason,
		TurnComplete:  true,
	}
}

func partialResponse(part *genai.Part) *model.LLMResponse {
	return &model.LLMResponse{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{part}},
		Partial: true,
	}
}
