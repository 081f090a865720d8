package server

import (
	"context"
	"errors"
	"time"

	"github.com/run-bigpig/roundtable/internal/meeting"
	"github.com/run-bigpig/roundtable/internal/models"
)

// 固定回复
const (
	msgMeetingNotFound  = "会议不存在"
	msgMinutesNotFound  = "会议纪要不存在"
	msgMeetingCompleted = "会议已结束，如需继续讨论请使用continue_discussion"
	msgMeetingRunning   = "会议正在进行中"
	msgMeetingDone      = "会议完成"
	msgNotCompleted     = "会议尚未结束，只能延续已结束的会议"
)

type meetingIDInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"会议ID"`
}

type createMeetingInput struct {
	Topic   string   `json:"topic" jsonschema:"会议主题"`
	RoleIDs []string `json:"role_ids" jsonschema:"角色ID列表"`
	Rounds  int      `json:"rounds,omitempty" jsonschema:"发言轮次，默认3"`
}

type updateTopicInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"会议ID"`
	Topic     string `json:"topic" jsonschema:"新主题"`
}

type updateRoundsInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"会议ID"`
	Rounds    int    `json:"rounds" jsonschema:"发言轮次数"`
}

type participantInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"会议ID"`
	RoleID    string `json:"role_id" jsonschema:"角色ID"`
}

type continueInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"已结束的会议ID"`
	NewTopic  string `json:"new_topic" jsonschema:"新主题"`
}

// meetingSummary list_meetings 的列表项
type meetingSummary struct {
	MeetingID string               `json:"meeting_id"`
	Topic     string               `json:"topic"`
	Status    models.MeetingStatus `json:"status"`
}

// meetingDetail get_meeting 的返回
type meetingDetail struct {
	MeetingID  string               `json:"meeting_id"`
	Topic      string               `json:"topic"`
	Roles      []string             `json:"roles"`
	Rounds     int                  `json:"rounds"`
	Status     models.MeetingStatus `json:"status"`
	Conclusion string               `json:"conclusion,omitempty"`
}

// meetingStatus get_meeting_status 的返回
type meetingStatus struct {
	MeetingID string               `json:"meeting_id"`
	Topic     string               `json:"topic"`
	Status    models.MeetingStatus `json:"status"`
	RoleIDs   []string             `json:"role_ids"`
	RoleNames []string             `json:"role_names"`
	Rounds    int                  `json:"rounds"`
	CreatedAt string               `json:"created_at"`
}

func (s *Server) registerMeetingTools() {
	addTool(s, "list_meetings", "列出所有会议", s.listMeetings)
	addTool(s, "create_meeting", "创建新会议", s.createMeeting)
	addTool(s, "get_meeting", "获取会议信息", s.getMeeting)
	addTool(s, "get_meeting_minutes", "获取会议纪要", s.getMeetingMinutes)
	addTool(s, "delete_meeting", "删除会议", s.deleteMeeting)
	addTool(s, "update_meeting_topic", "更新会议主题", s.updateMeetingTopic)
	addTool(s, "update_meeting_rounds", "更新会议轮次", s.updateMeetingRounds)
	addTool(s, "add_meeting_participant", "添加会议参与者", s.addParticipant)
	addTool(s, "remove_meeting_participant", "删除会议参与者", s.removeParticipant)
	addTool(s, "get_meeting_status", "获取会议状态", s.getMeetingStatus)
	addTool(s, "start_meeting", "启动会议（开始圆桌讨论）", s.startMeeting)
	addTool(s, "continue_discussion", "基于已结束会议的结论，以新主题继续讨论", s.continueDiscussion)
}

func (s *Server) listMeetings(ctx context.Context, _ emptyInput) (string, error) {
	list, err := s.meetings.List()
	if err != nil {
		return "", err
	}
	out := make([]meetingSummary, 0, len(list))
	for _, m := range list {
		status := m.Status
		if s.engine.IsRunning(m.ID) {
			status = models.MeetingStatusRunning
		}
		out = append(out, meetingSummary{MeetingID: m.ID, Topic: m.Topic, Status: status})
	}
	return jsonText(out)
}

func (s *Server) createMeeting(ctx context.Context, in createMeetingInput) (string, error) {
	m, err := s.meetings.Create(in.Topic, in.RoleIDs, in.Rounds)
	if err != nil {
		return failure("会议创建失败", err), nil
	}
	return "会议创建成功，ID: " + m.ID, nil
}

func (s *Server) getMeeting(ctx context.Context, in meetingIDInput) (string, error) {
	m, err := s.engine.Status(in.MeetingID)
	if errors.Is(err, meeting.ErrMeetingNotFound) {
		return msgMeetingNotFound, nil
	}
	if err != nil {
		return "", err
	}
	return jsonText(meetingDetail{
		MeetingID:  m.ID,
		Topic:      m.Topic,
		Roles:      m.ParticipantNames,
		Rounds:     m.Rounds,
		Status:     m.Status,
		Conclusion: m.Conclusion,
	})
}

func (s *Server) getMeetingMinutes(ctx context.Context, in meetingIDInput) (string, error) {
	minutes, err := s.meetings.Minutes(in.MeetingID)
	if errors.Is(err, meeting.ErrMinutesNotFound) {
		return msgMinutesNotFound, nil
	}
	if err != nil {
		return "", err
	}
	return minutes, nil
}

func (s *Server) deleteMeeting(ctx context.Context, in meetingIDInput) (string, error) {
	if s.engine.IsRunning(in.MeetingID) {
		return msgMeetingRunning, nil
	}
	if err := s.meetings.Delete(in.MeetingID); err != nil {
		return failure("删除失败", err), nil
	}
	return "删除成功", nil
}

func (s *Server) updateMeetingTopic(ctx context.Context, in updateTopicInput) (string, error) {
	if _, err := s.meetings.UpdateTopic(in.MeetingID, in.Topic); err != nil {
		return failure("更新失败", err), nil
	}
	return "更新成功", nil
}

func (s *Server) updateMeetingRounds(ctx context.Context, in updateRoundsInput) (string, error) {
	if _, err := s.meetings.UpdateRounds(in.MeetingID, in.Rounds); err != nil {
		return failure("更新失败", err), nil
	}
	return "更新成功", nil
}

func (s *Server) addParticipant(ctx context.Context, in participantInput) (string, error) {
	if _, err := s.meetings.AddParticipant(in.MeetingID, in.RoleID); err != nil {
		return failure("添加失败", err), nil
	}
	return "添加成功", nil
}

func (s *Server) removeParticipant(ctx context.Context, in participantInput) (string, error) {
	if _, err := s.meetings.RemoveParticipant(in.MeetingID, in.RoleID); err != nil {
		return failure("删除失败", err), nil
	}
	return "删除成功", nil
}

func (s *Server) getMeetingStatus(ctx context.Context, in meetingIDInput) (string, error) {
	m, err := s.engine.Status(in.MeetingID)
	if errors.Is(err, meeting.ErrMeetingNotFound) {
		return jsonText(map[string]string{"error": msgMeetingNotFound})
	}
	if err != nil {
		return "", err
	}
	return jsonText(meetingStatus{
		MeetingID: m.ID,
		Topic:     m.Topic,
		Status:    m.Status,
		RoleIDs:   m.ParticipantIDs,
		RoleNames: m.ParticipantNames,
		Rounds:    m.Rounds,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	})
}

// startMeeting 同步运行会议，已结束或运行中的会议不会重新运行
func (s *Server) startMeeting(ctx context.Context, in meetingIDInput) (string, error) {
	m, err := s.engine.Status(in.MeetingID)
	if errors.Is(err, meeting.ErrMeetingNotFound) {
		return msgMeetingNotFound, nil
	}
	if err != nil {
		return "", err
	}
	switch m.Status {
	case models.MeetingStatusCompleted:
		return msgMeetingCompleted, nil
	case models.MeetingStatusRunning:
		return msgMeetingRunning, nil
	}

	if err := s.engine.Run(ctx, m.ID, nil, nil); err != nil {
		if errors.Is(err, meeting.ErrMeetingRunning) {
			return msgMeetingRunning, nil
		}
		return failure("会议启动失败", err), nil
	}
	return msgMeetingDone, nil
}

func (s *Server) continueDiscussion(ctx context.Context, in continueInput) (string, error) {
	next, err := s.engine.Continue(ctx, in.MeetingID, in.NewTopic, nil)
	if errors.Is(err, meeting.ErrMeetingNotFound) {
		return msgMeetingNotFound, nil
	}
	if errors.Is(err, meeting.ErrMeetingNotCompleted) {
		return msgNotCompleted, nil
	}
	if err != nil {
		return failure("继续讨论失败", err), nil
	}
	return msgMeetingDone + "，新会议ID: " + next.ID, nil
}
