package meeting

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/roundtable/internal/models"
)

// 纪要占位文本
const (
	discussionPendingText = "（讨论进行中...）"
	consensusMissingText  = "未达成共识"
	conclusionPendingText = "（待生成）"
)

// conclusionHeadings 可识别的结论标题，区分大小写
var conclusionHeadings = []string{"## 结论", "## 会议结论"}

// minutesHeader 纪要的 YAML 头部
type minutesHeader struct {
	MeetingID string `yaml:"meeting_id"`
	Status    string `yaml:"status"`
	Rounds    int    `yaml:"rounds"`
	CreatedAt string `yaml:"created_at"`
}

// RenderMinutes 将会议记录渲染为 Markdown 纪要
// 相同输入总是得到逐字节相同的输出
func RenderMinutes(m *models.Meeting) (string, error) {
	header, err := yaml.Marshal(minutesHeader{
		MeetingID: m.ID,
		Status:    string(m.Status),
		Rounds:    m.Rounds,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("渲染纪要头部失败: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")

	sb.WriteString("# 会议纪要\n\n## 主题\n")
	sb.WriteString(m.Topic)
	sb.WriteString("\n\n## 参与角色\n")
	for _, name := range m.ParticipantNames {
		fmt.Fprintf(&sb, "- %s\n", name)
	}

	sb.WriteString("\n## 讨论过程\n")
	if len(m.Discussion) > 0 {
		for _, round := range m.Discussion {
			fmt.Fprintf(&sb, "\n### 第%d轮\n", round.Number)
			for _, sp := range round.Speeches {
				fmt.Fprintf(&sb, "\n**%s**:\n\n%s\n", sp.PersonaName, sp.Content)
			}
		}
	} else {
		fmt.Fprintf(&sb, "\n%s\n", discussionPendingText)
	}

	sb.WriteString("\n## 共识决策\n")
	if m.Consensus != "" {
		fmt.Fprintf(&sb, "\n%s\n", m.Consensus)
	} else {
		fmt.Fprintf(&sb, "\n%s\n", consensusMissingText)
	}

	conclusion := m.Conclusion
	if conclusion == "" {
		conclusion = conclusionPendingText
	}
	fmt.Fprintf(&sb, "\n## 结论\n\n%s\n", conclusion)

	return sb.String(), nil
}

// ExtractConclusion 从已渲染的纪要中取出结论段落
// 结论标题之后的所有非空行，去除首尾空白后以换行连接；找不到时返回空串
func ExtractConclusion(minutes string) string {
	var parts []string
	inConclusion := false
	for _, line := range strings.Split(minutes, "\n") {
		trimmed := strings.TrimSpace(line)
		if isConclusionHeading(trimmed) {
			inConclusion = true
			continue
		}
		if inConclusion && trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}

func isConclusionHeading(line string) bool {
	for _, h := range conclusionHeadings {
		if line == h {
			return true
		}
	}
	return false
}
