package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// toChatCompletionRequest 将 LLMRequest 转换为 Chat Completions 请求
func toChatCompletionRequest(req *model.LLMRequest, modelName string) (openai.ChatCompletionRequest, error) {
	chatReq := openai.ChatCompletionRequest{Model: modelName}

	if req.Config != nil && req.Config.SystemInstruction != nil {
		if sys := joinText(req.Config.SystemInstruction); sys != "" {
			chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: sys,
			})
		}
	}

	for _, content := range req.Contents {
		msgs, err := toChatMessages(content)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		chatReq.Messages = append(chatReq.Messages, msgs...)
	}

	if req.Config == nil {
		return chatReq, nil
	}
	if req.Config.Temperature != nil {
		chatReq.Temperature = *req.Config.Temperature
	}
	if req.Config.MaxOutputTokens > 0 {
		chatReq.MaxTokens = int(req.Config.MaxOutputTokens)
	}
	tools, err := toChatTools(req.Config.Tools)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	chatReq.Tools = tools
	return chatReq, nil
}

// toChatMessages 转换单条 Content
// FunctionResponse 各自成为一条 tool 消息，其余部分合并为一条消息
func toChatMessages(content *genai.Content) ([]openai.ChatCompletionMessage, error) {
	var (
		msgs      []openai.ChatCompletionMessage
		text      strings.Builder
		reasoning strings.Builder
		toolCalls []openai.ToolCall
	)

	for _, part := range content.Parts {
		switch {
		case part.FunctionResponse != nil:
			body, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function response: %w", err)
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: part.FunctionResponse.ID,
				Content:    string(body),
			})
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function args: %w", err)
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   part.FunctionCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Thought:
			reasoning.WriteString(part.Text)
		default:
			text.WriteString(part.Text)
		}
	}

	if text.Len() == 0 && reasoning.Len() == 0 && len(toolCalls) == 0 {
		return msgs, nil
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:             chatRole(content.Role),
		Content:          text.String(),
		ReasoningContent: reasoning.String(),
		ToolCalls:        toolCalls,
	}), nil
}

func chatRole(role string) string {
	switch role {
	case "model":
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// joinText 拼接 Content 中的非 thought 文本
func joinText(content *genai.Content) string {
	var texts []string
	for _, part := range content.Parts {
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// toChatTools 转换函数声明
func toChatTools(genaiTools []*genai.Tool) ([]openai.Tool, error) {
	var tools []openai.Tool
	for _, t := range genaiTools {
		if t == nil {
			continue
		}
		for _, decl := range t.FunctionDeclarations {
			params := decl.ParametersJsonSchema
			if params == nil && decl.Parameters != nil {
				params = decl.Parameters
			}
			if params == nil {
				return nil, fmt.Errorf("parameters is nil for tool %s", decl.Name)
			}
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools, nil
}

// fromChatCompletionResponse 转换非流式响应
func fromChatCompletionResponse(resp *openai.ChatCompletionResponse) (*model.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: "model"}

	if choice.Message.ReasoningContent != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.ReasoningContent, Thought: true})
	}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: parseJSONArgs(tc.Function.Arguments),
			},
		})
	}

	var usage *genai.GenerateContentResponseUsageMetadata
	if resp.Usage.TotalTokens > 0 {
		usage = usageMetadata(resp.Usage)
	}

	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: usage,
		FinishReason:  convertFinishReason(string(choice.FinishReason)),
		TurnComplete:  true,
	}, nil
}

func usageMetadata(u openai.Usage) *genai.GenerateContentResponseUsageMetadata {
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(u.PromptTokens),
		CandidatesTokenCount: int32(u.CompletionTokens),
		TotalTokenCount:      int32(u.TotalTokens),
	}
}

// convertFinishReason 转换结束原因
func convertFinishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop", "tool_calls", "function_call":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonUnspecified
	}
}

// parseJSONArgs 解析工具参数，非法 JSON 视为空参数
func parseJSONArgs(argsJSON string) map[string]any {
	args := make(map[string]any)
	if argsJSON == "" {
		return args
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
