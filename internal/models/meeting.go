package models

import "time"

// MeetingStatus 会议状态
type MeetingStatus string

const (
	MeetingStatusCreated   MeetingStatus = "created"   // 已创建，尚未运行
	MeetingStatusRunning   MeetingStatus = "running"   // 运行中（仅内存态，不持久化）
	MeetingStatusCompleted MeetingStatus = "completed" // 已结束
)

// DefaultRounds 默认讨论轮数
const DefaultRounds = 3

// Meeting 会议记录（持久化到 meetings.json）
type Meeting struct {
	ID               string        `json:"meeting_id"`
	Topic            string        `json:"topic"`
	ParticipantIDs   []string      `json:"role_ids"`
	ParticipantNames []string      `json:"role_names"`
	Rounds           int           `json:"rounds"`
	Status           MeetingStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	Consensus        string        `json:"consensus,omitempty"`  // 共识内容，未达成为空
	Conclusion       string        `json:"conclusion,omitempty"` // 结论，未生成为空
	Discussion       []Round       `json:"discussion,omitempty"` // 最近一次运行的讨论记录
}

// Clone 深拷贝，避免调用方修改存储中的切片
func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	c := *m
	c.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
	c.ParticipantNames = append([]string(nil), m.ParticipantNames...)
	if m.Discussion != nil {
		c.Discussion = make([]Round, len(m.Discussion))
		for i, r := range m.Discussion {
			c.Discussion[i] = Round{Number: r.Number, Speeches: append([]Speech(nil), r.Speeches...)}
		}
	}
	return &c
}

// HasParticipant 判断角色是否已在会议中
func (m *Meeting) HasParticipant(personaID string) bool {
	for _, id := range m.ParticipantIDs {
		if id == personaID {
			return true
		}
	}
	return false
}

// Speech 单个角色在一轮中的发言
type Speech struct {
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"role"`
	Content     string `json:"content"`
}

// Round 一轮讨论
type Round struct {
	Number   int      `json:"round"`
	Speeches []Speech `json:"speeches"`
}
