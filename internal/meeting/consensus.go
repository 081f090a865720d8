package meeting

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/run-bigpig/roundtable/internal/models"
)

// agreementKeywords 表示同意的词语
// 只做子串匹配，不识别否定（"我不同意" 同样命中 "同意"）
// "agree" 覆盖英文发言中的 "I agree"
var agreementKeywords = []string{
	"同意", "认可", "赞成", "支持", "我同意", "我赞成", "达成共识", "同意这个观点", "我支持",
	"agree",
}

// signalsAgreement 判断单条发言是否表示同意
func signalsAgreement(content string) bool {
	fold := cases.Fold()
	folded := fold.String(content)
	for _, kw := range agreementKeywords {
		if strings.Contains(folded, fold.String(kw)) {
			return true
		}
	}
	return false
}

// roundConsensus 本轮表示同意的角色名称集合恰好等于全部参与者名称集合时达成共识
func roundConsensus(speeches []models.Speech, participantNames []string) bool {
	agreed := make(map[string]bool)
	for _, sp := range speeches {
		if signalsAgreement(sp.Content) {
			agreed[sp.PersonaName] = true
		}
	}
	all := make(map[string]bool, len(participantNames))
	for _, name := range participantNames {
		all[name] = true
	}
	if len(agreed) != len(all) {
		return false
	}
	for name := range all {
		if !agreed[name] {
			return false
		}
	}
	return true
}

// consensusText 汇总本轮发言作为共识内容
func consensusText(speeches []models.Speech) string {
	parts := make([]string, 0, len(speeches))
	for _, sp := range speeches {
		parts = append(parts, sp.PersonaName+": "+sp.Content)
	}
	return strings.Join(parts, "\n\n")
}
