package meeting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/run-bigpig/roundtable/internal/adk"
	"github.com/run-bigpig/roundtable/internal/models"
	"github.com/run-bigpig/roundtable/internal/persona"
)

// sequentialIDs 生成确定的 12 位十六进制 ID
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%0*x", prefix, 12-len(prefix), n)
	}
}

var fixedTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	dir      string
	personas *persona.Store
	store    *Store
	ids      map[string]string // name -> persona id
}

// newFixture 创建角色存储与会议存储，并按名称创建角色
func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	ps, err := persona.NewStore(dir, persona.WithIDGenerator(sequentialIDs("a")))
	if err != nil {
		t.Fatalf("persona.NewStore() 失败: %v", err)
	}
	ms, err := NewStore(dir, ps,
		WithMeetingIDGenerator(sequentialIDs("b")),
		WithClock(func() time.Time { return fixedTime }))
	if err != nil {
		t.Fatalf("NewStore() 失败: %v", err)
	}
	f := &fixture{dir: dir, personas: ps, store: ms, ids: map[string]string{}}
	for _, name := range names {
		p, err := ps.Create(name, name+" 的角色描述", "")
		if err != nil {
			t.Fatalf("Create(%s) 失败: %v", name, err)
		}
		f.ids[name] = p.ID
	}
	return f
}

func (f *fixture) idsOf(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, f.ids[n])
	}
	return out
}

// scriptedGen 按请求内容返回预设回复的模型网关
type scriptedGen struct {
	mu    sync.Mutex
	calls []adk.GenerateRequest
	reply func(call int, req adk.GenerateRequest) (string, error)
}

func (g *scriptedGen) Generate(ctx context.Context, req adk.GenerateRequest) (*adk.GenerateResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	g.mu.Unlock()

	text, err := g.reply(n, req)
	if err != nil {
		return nil, err
	}
	return &adk.GenerateResult{Text: text, StopReason: adk.StopReasonEndTurn}, nil
}

func (g *scriptedGen) GenerateStream(ctx context.Context, req adk.GenerateRequest, onChunk func(string)) (*adk.GenerateResult, error) {
	res, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Text {
		onChunk(string(r))
	}
	return res, nil
}

func (g *scriptedGen) speakerCalls() []adk.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []adk.GenerateRequest
	for _, c := range g.calls {
		if isSpeakerRequest(c) {
			out = append(out, c)
		}
	}
	return out
}

func (g *scriptedGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func isSpeakerRequest(req adk.GenerateRequest) bool {
	return strings.Contains(req.SystemPrompt, "角色扮演游戏的参与者")
}

func isSummaryRequest(req adk.GenerateRequest) bool {
	return req.SystemPrompt == summarizerSystemPrompt
}

// speakerName 从系统提示词中的身份文档找出发言者
func speakerName(req adk.GenerateRequest, names ...string) string {
	for _, n := range names {
		if strings.Contains(req.SystemPrompt, "## 名字\n"+n+"\n") {
			return n
		}
	}
	return ""
}

func sampleMeetingRounds() []models.Round {
	return []models.Round{{
		Number: 1,
		Speeches: []models.Speech{
			{PersonaName: "Alice", Content: "我同意"},
			{PersonaName: "Bob", Content: "我也同意"},
		},
	}}
}
