package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// toMessageParams 将 LLMRequest 转换为 Messages 请求
func toMessageParams(req *model.LLMRequest, modelName string) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultMaxTokens,
	}

	for _, content := range req.Contents {
		msg, ok, err := toMessageParam(content)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		if ok {
			params.Messages = append(params.Messages, msg)
		}
	}

	cfg := req.Config
	if cfg == nil {
		return params, nil
	}
	if cfg.SystemInstruction != nil {
		if sys := joinText(cfg.SystemInstruction); sys != "" {
			params.System = []anthropic.TextBlockParam{{Text: sys}}
		}
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*cfg.Temperature))
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxTokens = int64(cfg.MaxOutputTokens)
	}
	tools, err := toToolParams(cfg.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	params.Tools = tools
	return params, nil
}

// toMessageParam 转换单条 Content
// 带签名的 thought 部分按原样回传给 assistant 消息，工具循环续接时后端需要校验
func toMessageParam(content *genai.Content) (anthropic.MessageParam, bool, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range content.Parts {
		switch {
		case part.Thought:
			if content.Role != "model" || len(part.ThoughtSignature) == 0 {
				continue
			}
			if part.Text == "" {
				blocks = append(blocks, anthropic.NewRedactedThinkingBlock(string(part.ThoughtSignature)))
			} else {
				blocks = append(blocks, anthropic.NewThinkingBlock(string(part.ThoughtSignature), part.Text))
			}
		case part.FunctionCall != nil:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    part.FunctionCall.ID,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			}})
		case part.FunctionResponse != nil:
			text, isErr := functionResponseText(part.FunctionResponse.Response)
			blocks = append(blocks, anthropic.NewToolResultBlock(part.FunctionResponse.ID, text, isErr))
		case part.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		}
	}
	if len(blocks) == 0 {
		return anthropic.MessageParam{}, false, nil
	}
	if content.Role == "model" {
		return anthropic.NewAssistantMessage(blocks...), true, nil
	}
	return anthropic.NewUserMessage(blocks...), true, nil
}

// functionResponseText 取出工具结果文本，约定 output / error 两个键
func functionResponseText(resp map[string]any) (string, bool) {
	if e, ok := resp["error"].(string); ok && e != "" {
		return e, true
	}
	if out, ok := resp["output"].(string); ok {
		return out, false
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprint(resp), false
	}
	return string(body), false
}

// toToolParams 转换函数声明，参数 schema 取 properties 与 required
func toToolParams(genaiTools []*genai.Tool) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range genaiTools {
		if t == nil {
			continue
		}
		for _, decl := range t.FunctionDeclarations {
			schema, err := inputSchema(decl)
			if err != nil {
				return nil, err
			}
			out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: schema,
			}})
		}
	}
	return out, nil
}

func inputSchema(decl *genai.FunctionDeclaration) (anthropic.ToolInputSchemaParam, error) {
	if decl.ParametersJsonSchema == nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("parameters is nil for tool %s", decl.Name)
	}
	raw, err := json.Marshal(decl.ParametersJsonSchema)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("failed to marshal schema for tool %s: %w", decl.Name, err)
	}
	var s struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("invalid schema for tool %s: %w", decl.Name, err)
	}
	return anthropic.ToolInputSchemaParam{Properties: s.Properties, Required: s.Required}, nil
}

// fromMessage 转换响应
func fromMessage(msg *anthropic.Message) (*model.LLMResponse, error) {
	if msg == nil || len(msg.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	content := &genai.Content{Role: "model"}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: v.Text})
			}
		case anthropic.ThinkingBlock:
			content.Parts = append(content.Parts, &genai.Part{
				Text:             v.Thinking,
				Thought:          true,
				ThoughtSignature: []byte(v.Signature),
			})
		case anthropic.RedactedThinkingBlock:
			// 加密的思考内容只保留 data，Text 为空
			content.Parts = append(content.Parts, &genai.Part{Thought: true, ThoughtSignature: []byte(v.Data)})
		case anthropic.ToolUseBlock:
			args := make(map[string]any)
			if raw := v.JSON.Input.Raw(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					args = make(map[string]any)
				}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: v.ID, Name: v.Name, Args: args},
			})
		}
	}

	return &model.LLMResponse{
		Content: content,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(msg.Usage.InputTokens),
			CandidatesTokenCount: int32(msg.Usage.OutputTokens),
			TotalTokenCount:      int32(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: convertStopReason(msg.StopReason),
		TurnComplete: true,
	}, nil
}

func convertStopReason(reason anthropic.StopReason) genai.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, anthropic.StopReasonToolUse:
		return genai.FinishReasonStop
	case anthropic.StopReasonMaxTokens:
		return genai.FinishReasonMaxTokens
	default:
		return genai.FinishReasonUnspecified
	}
}

func joinText(content *genai.Content) string {
	var texts []string
	for _, part := range content.Parts {
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
