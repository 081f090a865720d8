package adk

import (
	"context"
	"fmt"

	"github.com/run-bigpig/roundtable/internal/adk/anthropic"
	"github.com/run-bigpig/roundtable/internal/adk/openai"
	"github.com/run-bigpig/roundtable/internal/models"

	go_openai "github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// ModelFactory 模型工厂，根据配置创建对应的 adk model
type ModelFactory struct{}

// NewModelFactory 创建模型工厂
func NewModelFactory() *ModelFactory {
	return &ModelFactory{}
}

// CreateModel 根据 AI 配置创建对应的模型
func (f *ModelFactory) CreateModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	switch config.Provider {
	case models.AIProviderAnthropic, "":
		return f.createAnthropicModel(config), nil
	case models.AIProviderGemini:
		return f.createGeminiModel(ctx, config)
	case models.AIProviderOpenAI:
		return f.createOpenAIModel(config), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// CreateGateway 创建模型并包装为网关
func (f *ModelFactory) CreateGateway(ctx context.Context, config *models.AIConfig, opts ...GatewayOption) (*Gateway, error) {
	llm, err := f.CreateModel(ctx, config)
	if err != nil {
		return nil, err
	}
	opts = append([]GatewayOption{WithStreaming(config.Streaming)}, opts...)
	return NewGateway(llm, opts...), nil
}

// createAnthropicModel 创建 Anthropic 兼容模型
func (f *ModelFactory) createAnthropicModel(config *models.AIConfig) model.LLM {
	return anthropic.New(config.ModelName, config.APIKey, config.BaseURL)
}

// createGeminiModel 创建 Gemini 模型
func (f *ModelFactory) createGeminiModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	return gemini.NewModel(ctx, config.ModelName, clientConfig)
}

// createOpenAIModel 创建 OpenAI 兼容模型
func (f *ModelFactory) createOpenAIModel(config *models.AIConfig) model.LLM {
	openaiCfg := go_openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		openaiCfg.BaseURL = config.BaseURL
	}
	return openai.New(config.ModelName, openaiCfg)
}
