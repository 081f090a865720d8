package meeting

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/run-bigpig/roundtable/internal/models"
)

func TestCreateMeeting(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")

	m, err := f.store.Create("  是否采用方案X？ ", f.idsOf("Alice", "Bob", "Alice"), 0)
	if err != nil {
		t.Fatalf("Create() 失败: %v", err)
	}
	if m.Topic != "是否采用方案X？" {
		t.Errorf("Topic = %q", m.Topic)
	}
	if m.Rounds != models.DefaultRounds {
		t.Errorf("Rounds = %d, 期望默认值 %d", m.Rounds, models.DefaultRounds)
	}
	if m.Status != models.MeetingStatusCreated {
		t.Errorf("Status = %q, 期望 created", m.Status)
	}
	if len(m.ParticipantIDs) != 2 {
		t.Errorf("ParticipantIDs = %v, 期望去重", m.ParticipantIDs)
	}
	if strings.Join(m.ParticipantNames, ",") != "Alice,Bob" {
		t.Errorf("ParticipantNames = %v", m.ParticipantNames)
	}
	if !m.CreatedAt.Equal(fixedTime) {
		t.Errorf("CreatedAt = %v", m.CreatedAt)
	}

	minutes, err := f.store.Minutes(m.ID)
	if err != nil {
		t.Fatalf("Minutes() 失败: %v", err)
	}
	if !strings.Contains(minutes, discussionPendingText) {
		t.Errorf("新会议纪要应包含待生成占位:\n%s", minutes)
	}
}

func TestCreateMeetingValidation(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")

	tests := []struct {
		name   string
		topic  string
		ids    []string
		rounds int
		want   error
	}{
		{"empty topic", "  ", f.idsOf("Alice", "Bob"), 3, ErrEmptyTopic},
		{"negative rounds", "t", f.idsOf("Alice", "Bob"), -1, ErrInvalidRounds},
		{"single participant", "t", f.idsOf("Alice"), 3, ErrNotEnoughParticipants},
		{"duplicates collapse to one", "t", f.idsOf("Alice", "Alice"), 3, ErrNotEnoughParticipants},
		{"unknown persona", "t", []string{f.ids["Alice"], "ffffffffffff"}, 3, ErrUnknownPersona},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.Create(tt.topic, tt.ids, tt.rounds)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() 错误 = %v, 期望 %v", err, tt.want)
			}
		})
	}

	list, err := f.store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("创建失败不应落盘, 实际 %d 个会议", len(list))
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	for _, topic := range []string{"c", "a", "b"} {
		if _, err := f.store.Create(topic, f.idsOf("Alice", "Bob"), 1); err != nil {
			t.Fatal(err)
		}
	}
	list, err := f.store.List()
	if err != nil {
		t.Fatal(err)
	}
	var topics []string
	for _, m := range list {
		topics = append(topics, m.Topic)
	}
	if strings.Join(topics, "") != "cab" {
		t.Errorf("List() 主题 = %v, 期望按创建顺序", topics)
	}
}

func TestUpdateMeeting(t *testing.T) {
	f := newFixture(t, "Alice", "Bob", "Carol")
	m, err := f.store.Create("旧主题", f.idsOf("Alice", "Bob"), 2)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("topic re-renders minutes", func(t *testing.T) {
		if _, err := f.store.UpdateTopic(m.ID, "新主题"); err != nil {
			t.Fatal(err)
		}
		minutes, _ := f.store.Minutes(m.ID)
		if !strings.Contains(minutes, "## 主题\n新主题\n") {
			t.Errorf("纪要未重新生成:\n%s", minutes)
		}
		if _, err := f.store.UpdateTopic(m.ID, ""); !errors.Is(err, ErrEmptyTopic) {
			t.Errorf("UpdateTopic(\"\") 失败: %v", err)
		}
	})

	t.Run("rounds", func(t *testing.T) {
		got, err := f.store.UpdateRounds(m.ID, 5)
		if err != nil || got.Rounds != 5 {
			t.Fatalf("UpdateRounds(5) = %v, %v", got, err)
		}
		if _, err := f.store.UpdateRounds(m.ID, 0); !errors.Is(err, ErrInvalidRounds) {
			t.Errorf("UpdateRounds(0) 失败: %v", err)
		}
	})

	t.Run("participants", func(t *testing.T) {
		got, err := f.store.AddParticipant(m.ID, f.ids["Carol"])
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got.ParticipantNames, ",") != "Alice,Bob,Carol" {
			t.Errorf("名称 = %v", got.ParticipantNames)
		}
		if _, err := f.store.AddParticipant(m.ID, f.ids["Carol"]); !errors.Is(err, ErrParticipantExists) {
			t.Errorf("重复添加错误 = %v", err)
		}
		if _, err := f.store.AddParticipant(m.ID, "ffffffffffff"); !errors.Is(err, ErrUnknownPersona) {
			t.Errorf("添加未知角色错误 = %v", err)
		}

		got, err = f.store.RemoveParticipant(m.ID, f.ids["Bob"])
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got.ParticipantNames, ",") != "Alice,Carol" {
			t.Errorf("移除后名称 = %v", got.ParticipantNames)
		}
		if _, err := f.store.RemoveParticipant(m.ID, f.ids["Bob"]); !errors.Is(err, ErrParticipantNotInMeeting) {
			t.Errorf("移除非参与者错误 = %v", err)
		}
	})

	t.Run("unknown meeting", func(t *testing.T) {
		if _, err := f.store.UpdateTopic("nope", "x"); !errors.Is(err, ErrMeetingNotFound) {
			t.Errorf("错误 = %v, 期望 ErrMeetingNotFound", err)
		}
	})
}

func TestDeleteMeeting(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	m, err := f.store.Create("t", f.idsOf("Alice", "Bob"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.Delete(m.ID); err != nil {
		t.Fatalf("Delete() 失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "meetings", m.ID+".md")); !os.IsNotExist(err) {
		t.Errorf("纪要文件应被删除, stat 错误 = %v", err)
	}
	if _, err := f.store.Get(m.ID); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("删除后 Get() 错误 = %v", err)
	}
	if err := f.store.Delete(m.ID); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("再次 Delete() 失败: %v", err)
	}
}

func TestDeletedPersonaKeepsMeeting(t *testing.T) {
	f := newFixture(t, "Alice", "Bob", "Carol")
	m, err := f.store.Create("t", f.idsOf("Alice", "Bob", "Carol"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.personas.Delete(f.ids["Carol"]); err != nil {
		t.Fatal(err)
	}
	got, err := f.store.Get(m.ID)
	if err != nil {
		t.Fatalf("Get() 失败: %v", err)
	}
	if len(got.ParticipantIDs) != 3 || got.ParticipantNames[2] != "Carol" {
		t.Errorf("删除角色后会议记录被修改: %+v", got)
	}
}
