package meeting

import (
	"fmt"
	"strings"

	"github.com/run-bigpig/roundtable/internal/models"
)

// unknownPersonaName 角色已被删除时使用的显示名
const unknownPersonaName = "未知角色"

// PriorContext 继续讨论时带入的上次会议信息
type PriorContext struct {
	Topic      string
	Conclusion string
}

const speakerRules = `## 重要规则
1. 你必须严格遵守角色的设定、性格和职能
2. 在讨论中积极表达你的观点，但要与角色设定一致
3. 如果你同意其他人的观点，请明确说"我同意"
4. 如果你反对，请明确说"我反对"并说明理由
5. 尝试达成共识
6. 如果话题中涉及"今年"、"去年"、"明年"、"现在"、"当前"、"最近"等时间相关词汇，**必须先使用web_search工具搜索确认当前的具体日期和时间**，然后基于准确的时间信息进行讨论，避免使用错误的时间假设
`

// buildSpeakerSystemPrompt 发言者系统提示词：身份文档 + 固定规则
func buildSpeakerSystemPrompt(identity string) string {
	return "你是一个角色扮演游戏的参与者。请严格按照你扮演的角色来发言。\n\n" +
		identity + "\n\n" + speakerRules
}

// buildOpeningPrompt 第一轮的用户提示词
func buildOpeningPrompt(topic string, prior *PriorContext) string {
	reference := ""
	if prior != nil && prior.Topic != "" && prior.Conclusion != "" {
		reference = fmt.Sprintf(`
【参考】上次会议信息：
- 上次会议主题：%s
- 上次会议结论：%s

请结合上次会议的讨论和结论，针对以下新主题发表观点：
`, prior.Topic, prior.Conclusion)
	}
	return fmt.Sprintf("请讨论以下主题：\n\n%s\n%s\n请表达你的观点，并尝试与其他人达成共识。", topic, reference)
}

// buildFollowUpPrompt 后续轮次的用户提示词，附带之前全部发言
func buildFollowUpPrompt(topic, summary string) string {
	return fmt.Sprintf("请讨论以下主题：\n\n%s\n\n之前的讨论摘要：\n%s\n\n请在上一轮讨论的基础上继续发表你的观点，并尝试达成共识。", topic, summary)
}

// appendSummary 追加一条发言到讨论摘要
func appendSummary(sb *strings.Builder, name, content string) {
	fmt.Fprintf(sb, "\n%s: %s", name, content)
}

// transcriptText 全部轮次发言的纯文本，用于结论生成
func transcriptText(rounds []models.Round) string {
	var sb strings.Builder
	for _, r := range rounds {
		for _, sp := range r.Speeches {
			appendSummary(&sb, sp.PersonaName, sp.Content)
		}
	}
	return sb.String()
}

const summarizerSystemPrompt = "你是一个会议总结专家。请根据讨论内容生成简洁的结论。"

func buildSummaryPrompt(topic, transcript string) string {
	return fmt.Sprintf("请根据以下讨论内容，生成一个简洁的结论：\n\n主题: %s\n\n讨论内容:\n%s\n\n请生成结论：", topic, transcript)
}

const refinerSystemPrompt = `你是一个会议主题分析师。你的任务是分析用户提供的会议主题，判断其是否清晰、完整，并提供改进建议。

请分析以下方面：
1. 主题是否明确
2. 是否有遗漏的重要信息
3. 是否需要补充背景、时间、范围等要素

如果主题已经足够清晰，返回原主题。
如果需要改进，请提供改进后的主题。`

func buildRefinePrompt(topic string) string {
	return fmt.Sprintf(`请分析以下会议主题：

%s

请按以下格式回复：
1. 分析意见（指出问题）
2. 改进建议（如果有）
3. 优化后的主题（如果需要改进）

如果主题已经足够清晰，只需回复"主题清晰，无需改进："然后直接返回原主题。`, topic)
}
