package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/roundtable/internal/adk"
	"github.com/run-bigpig/roundtable/internal/meeting"
	"github.com/run-bigpig/roundtable/internal/persona"
)

// fakeGen 所有发言都表示同意，结论固定
type fakeGen struct {
	onCall func()
}

func (g *fakeGen) Generate(ctx context.Context, req adk.GenerateRequest) (*adk.GenerateResult, error) {
	if g.onCall != nil {
		g.onCall()
	}
	if len(req.Tools) == 0 {
		return &adk.GenerateResult{Text: "结论：采用方案"}, nil
	}
	return &adk.GenerateResult{Text: "我同意"}, nil
}

func (g *fakeGen) GenerateStream(ctx context.Context, req adk.GenerateRequest, onChunk func(string)) (*adk.GenerateResult, error) {
	res, err := g.Generate(ctx, req)
	if err == nil {
		onChunk(res.Text)
	}
	return res, err
}

type testEnv struct {
	srv      *Server
	personas *persona.Store
	gen      *fakeGen
	session  *mcp.ClientSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	n := 0
	ps, err := persona.NewStore(dir, persona.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("%012x", n)
	}))
	if err != nil {
		t.Fatal(err)
	}
	ms, err := meeting.NewStore(dir, ps)
	if err != nil {
		t.Fatal(err)
	}
	gen := &fakeGen{}
	engine := meeting.NewService(ms, ps, gen, meeting.WithMaxRetries(0), meeting.WithTurnTimeout(5*time.Second))
	srv := New(ps, engine, "test")

	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server.Connect() 失败: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client.Connect() 失败: %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Close()
	})
	return &testEnv{srv: srv, personas: ps, gen: gen, session: cs}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) 失败: %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) 返回工具错误: %+v", name, res.Content)
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (e *testEnv) createPersonas(t *testing.T, names ...string) []string {
	t.Helper()
	var ids []string
	for _, name := range names {
		p, err := e.personas.Create(name, name+" 描述", "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() 失败: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"add_meeting_participant", "continue_discussion", "create_meeting", "create_role",
		"delete_meeting", "delete_role", "get_meeting", "get_meeting_minutes", "get_meeting_status",
		"get_role_identity", "list_meetings", "list_roles", "remove_meeting_participant",
		"start_meeting", "update_meeting_rounds", "update_meeting_topic",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("工具 = %v\n期望 %v", names, want)
	}
}

func TestPersonaTools(t *testing.T) {
	env := newTestEnv(t)

	got := env.call(t, "create_role", map[string]any{"name": "Alice", "description": "产品经理", "notes": "简洁"})
	if !strings.HasPrefix(got, "创建成功") {
		t.Fatalf("create_role = %q", got)
	}
	id := strings.TrimPrefix(got, "创建成功，ID: ")

	if got := env.call(t, "create_role", map[string]any{"name": "Alice", "description": "x"}); !strings.HasPrefix(got, "创建失败") {
		t.Errorf("重名 create_role = %q", got)
	}

	var roles []map[string]string
	if err := json.Unmarshal([]byte(env.call(t, "list_roles", nil)), &roles); err != nil {
		t.Fatalf("list_roles 返回的不是 JSON: %v", err)
	}
	if len(roles) != 1 || roles[0]["name"] != "Alice" || roles[0]["id"] != id {
		t.Errorf("list_roles = %v", roles)
	}

	if got := env.call(t, "get_role_identity", map[string]any{"role_id": id}); !strings.Contains(got, "## 名字\nAlice") {
		t.Errorf("get_role_identity = %q", got)
	}
	if got := env.call(t, "delete_role", map[string]any{"role_id": id}); got != "删除成功" {
		t.Errorf("delete_role = %q", got)
	}
	if got := env.call(t, "get_role_identity", map[string]any{"role_id": id}); got != "角色不存在" {
		t.Errorf("删除后 get_role_identity = %q", got)
	}
	if got := env.call(t, "delete_role", map[string]any{"role_id": id}); !strings.HasPrefix(got, "删除失败") {
		t.Errorf("再次 delete_role = %q", got)
	}
}

func TestMeetingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createPersonas(t, "Alice", "Bob", "Carol")

	if got := env.call(t, "create_meeting", map[string]any{"topic": "t", "role_ids": ids[:1]}); !strings.HasPrefix(got, "会议创建失败") {
		t.Errorf("只有一个角色时 create_meeting = %q", got)
	}

	got := env.call(t, "create_meeting", map[string]any{"topic": "是否采用方案X", "role_ids": ids[:2]})
	if !strings.HasPrefix(got, "会议创建成功，ID: ") {
		t.Fatalf("create_meeting = %q", got)
	}
	id := strings.TrimPrefix(got, "会议创建成功，ID: ")
	args := map[string]any{"meeting_id": id}

	var detail meetingDetail
	if err := json.Unmarshal([]byte(env.call(t, "get_meeting", args)), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Rounds != 3 || detail.Status != "created" || len(detail.Roles) != 2 {
		t.Errorf("get_meeting = %+v", detail)
	}

	steps := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"update_meeting_topic", map[string]any{"meeting_id": id, "topic": "是否在今年采用方案X"}, "更新成功"},
		{"update_meeting_rounds", map[string]any{"meeting_id": id, "rounds": 2}, "更新成功"},
		{"add_meeting_participant", map[string]any{"meeting_id": id, "role_id": ids[2]}, "添加成功"},
		{"remove_meeting_participant", map[string]any{"meeting_id": id, "role_id": ids[2]}, "删除成功"},
		{"start_meeting", args, msgMeetingDone},
		{"start_meeting", args, msgMeetingCompleted},
	}
	for _, st := range steps {
		if got := env.call(t, st.tool, st.args); got != st.want {
			t.Errorf("%s = %q, 期望 %q", st.tool, got, st.want)
		}
	}
	if got := env.call(t, "update_meeting_rounds", map[string]any{"meeting_id": id, "rounds": 0}); !strings.HasPrefix(got, "更新失败") {
		t.Errorf("update_meeting_rounds(0) = %q", got)
	}

	var status meetingStatus
	if err := json.Unmarshal([]byte(env.call(t, "get_meeting_status", args)), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "completed" || status.Rounds != 2 || len(status.RoleIDs) != 2 {
		t.Errorf("get_meeting_status = %+v", status)
	}

	minutes := env.call(t, "get_meeting_minutes", args)
	if !strings.Contains(minutes, "## 结论\n\n结论：采用方案") {
		t.Errorf("纪要:\n%s", minutes)
	}

	got = env.call(t, "continue_discussion", map[string]any{"meeting_id": id, "new_topic": "推进节奏"})
	if !strings.HasPrefix(got, msgMeetingDone+"，新会议ID: ") {
		t.Fatalf("continue_discussion = %q", got)
	}

	var list []meetingSummary
	if err := json.Unmarshal([]byte(env.call(t, "list_meetings", nil)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].MeetingID != id || list[1].Topic != "推进节奏" {
		t.Errorf("list_meetings = %+v", list)
	}

	if got := env.call(t, "delete_meeting", args); got != "删除成功" {
		t.Errorf("delete_meeting = %q", got)
	}
	if got := env.call(t, "get_meeting_minutes", args); got != msgMinutesNotFound {
		t.Errorf("删除后纪要 = %q", got)
	}
}

func TestUnknownMeeting(t *testing.T) {
	env := newTestEnv(t)
	args := map[string]any{"meeting_id": "ffffffffffff"}

	for _, tool := range []string{"get_meeting", "start_meeting"} {
		if got := env.call(t, tool, args); got != msgMeetingNotFound {
			t.Errorf("%s = %q", tool, got)
		}
	}
	if got := env.call(t, "get_meeting_status", args); got != `{"error":"会议不存在"}` {
		t.Errorf("get_meeting_status = %q", got)
	}
	if got := env.call(t, "get_meeting_minutes", args); got != msgMinutesNotFound {
		t.Errorf("get_meeting_minutes = %q", got)
	}
	if got := env.call(t, "continue_discussion", map[string]any{"meeting_id": "ffffffffffff", "new_topic": "x"}); got != msgMeetingNotFound {
		t.Errorf("continue_discussion = %q", got)
	}
}

func TestStartMeetingWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createPersonas(t, "Alice", "Bob")
	m, err := env.srv.meetings.Create("t", ids, 1)
	if err != nil {
		t.Fatal(err)
	}

	var nested, deleted string
	env.gen.onCall = func() {
		if nested == "" {
			nested, _ = env.srv.startMeeting(context.Background(), meetingIDInput{MeetingID: m.ID})
			deleted, _ = env.srv.deleteMeeting(context.Background(), meetingIDInput{MeetingID: m.ID})
		}
	}

	if got := env.call(t, "start_meeting", map[string]any{"meeting_id": m.ID}); got != msgMeetingDone {
		t.Errorf("start_meeting = %q", got)
	}
	if nested != msgMeetingRunning {
		t.Errorf("会议进行中 start_meeting = %q, 期望 %q", nested, msgMeetingRunning)
	}
	if deleted != msgMeetingRunning {
		t.Errorf("会议进行中 delete_meeting = %q", deleted)
	}
}

func TestContinueDiscussionRequiresCompleted(t *testing.T) {
	env := newTestEnv(t)
	ids := env.createPersonas(t, "Alice", "Bob")
	m, err := env.srv.meetings.Create("尚未开始", ids, 1)
	if err != nil {
		t.Fatal(err)
	}

	got := env.call(t, "continue_discussion", map[string]any{"meeting_id": m.ID, "new_topic": "新主题"})
	if got != msgNotCompleted {
		t.Errorf("未结束会议 continue_discussion = %q, 期望 %q", got, msgNotCompleted)
	}
	list, _ := env.srv.meetings.List()
	if len(list) != 1 {
		t.Errorf("不应创建新会议, 会议数 = %d", len(list))
	}
}
