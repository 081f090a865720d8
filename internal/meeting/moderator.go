package meeting

import (
	"context"
	"fmt"
	"strings"

	"github.com/run-bigpig/roundtable/internal/adk"
	"github.com/run-bigpig/roundtable/internal/models"
)

// 主持人调用参数
const (
	summaryTemperature = 0.5
	refineTemperature  = 0.7
)

// 主题分析回复中表示无需改进的标记
var (
	topicClearMarkers    = []string{"无需改进", "已经足够清晰", "主题清晰"}
	improvedTopicMarkers = []string{"优化后", "改进后", "最终主题"}
)

// Moderator 主持人：生成结论、整理会议主题
type Moderator struct {
	gen       Generator
	maxTokens int
}

// NewModerator 创建主持人
func NewModerator(gen Generator, maxTokens int) *Moderator {
	if maxTokens <= 0 {
		maxTokens = adk.DefaultMaxOutputTokens
	}
	return &Moderator{gen: gen, maxTokens: maxTokens}
}

// Summarize 根据讨论内容生成简洁结论，不使用工具
func (m *Moderator) Summarize(ctx context.Context, topic string, rounds []models.Round) (string, error) {
	res, err := m.gen.Generate(ctx, adk.GenerateRequest{
		SystemPrompt:    summarizerSystemPrompt,
		UserPrompt:      buildSummaryPrompt(topic, transcriptText(rounds)),
		MaxOutputTokens: m.maxTokens,
		Temperature:     summaryTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("moderator summarize error: %w", err)
	}
	return res.Text, nil
}

// RefineTopic 流式分析会议主题，onChunk 接收增量文本
// 返回改进后的主题；主题已足够清晰或无法提取时返回原主题
func (m *Moderator) RefineTopic(ctx context.Context, topic string, onChunk func(string)) (string, error) {
	var full strings.Builder
	_, err := m.gen.GenerateStream(ctx, adk.GenerateRequest{
		SystemPrompt:    refinerSystemPrompt,
		UserPrompt:      buildRefinePrompt(topic),
		MaxOutputTokens: m.maxTokens,
		Temperature:     refineTemperature,
	}, func(chunk string) {
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	if err != nil {
		return topic, fmt.Errorf("moderator refine error: %w", err)
	}
	return pickRefinedTopic(topic, full.String()), nil
}

// pickRefinedTopic 从分析结果中取出改进后的主题
// 只接受比原主题更长的候选，避免截断
func pickRefinedTopic(topic, analysis string) string {
	for _, marker := range topicClearMarkers {
		if strings.Contains(analysis, marker) {
			return topic
		}
	}

	capture := false
	for _, line := range strings.Split(analysis, "\n") {
		if containsAny(line, improvedTopicMarkers) {
			capture = true
			continue
		}
		if capture && strings.TrimSpace(line) != "" {
			candidate := strings.Trim(strings.TrimSpace(line), `"'`)
			if len([]rune(candidate)) > len([]rune(topic)) {
				return candidate
			}
			return topic
		}
	}
	return topic
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
