package anthropic

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/roundtable/internal/logger"
)

var modelLog = logger.New("anthropic:model")

var _ model.LLM = &Model{}

// defaultMaxTokens Messages 接口要求必须给出 max_tokens
const defaultMaxTokens = 4096

var ErrEmptyResponse = errors.New("empty response from Anthropic")

// Model 基于 Messages 接口的 model.LLM 实现，兼容 MiniMax 等 Anthropic 兼容服务
type Model struct {
	client    anthropic.Client
	modelName string
}

// New 创建 Anthropic 兼容模型，baseURL 为空时使用官方地址
func New(modelName, apiKey, baseURL string, opts ...option.RequestOption) *Model {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	return &Model{
		client:    anthropic.NewClient(clientOpts...),
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
		params, err := toMessageParams(req, m.modelName)
		if err != nil {
			yield(nil, err)
			return
		}

		msg, err := m.client.Messages.New(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(fromMessage(msg))
	}
}

func (m *Model) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params, err := toMessageParams(req, m.modelName)
		if err != nil {
			yield(nil, err)
			return
		}

		stream := m.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				yield(nil, fmt.Errorf("聚合流式事件失败: %w", err))
				return
			}

			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			var part *genai.Part
			switch d := delta.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				part = &genai.Part{Text: d.Text}
			case anthropic.ThinkingDelta:
				part = &genai.Part{Text: d.Thinking, Thought: true}
			}
			if part == nil || part.Text == "" {
				continue
			}
			partial := &model.LLMResponse{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{part}},
				Partial: true,
			}
			if !yield(partial, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			modelLog.Warn("流式读取中断: %v", err)
			yield(nil, fmt.Errorf("流式读取错误: %w", err))
			return
		}
		yield(fromMessage(&message))
	}
}
