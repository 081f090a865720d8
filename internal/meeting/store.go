package meeting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/run-bigpig/roundtable/internal/models"
)

const (
	indexFileName  = "meetings.json"
	minutesDirName = "meetings"
	// MinParticipants 创建会议所需的最少参与者
	MinParticipants = 2
)

// 校验错误，调用方以 errors.Is 判断
var (
	ErrMeetingNotFound         = errors.New("会议不存在")
	ErrMinutesNotFound         = errors.New("会议纪要不存在")
	ErrEmptyTopic              = errors.New("会议主题不能为空")
	ErrInvalidRounds           = errors.New("轮次必须大于0")
	ErrNotEnoughParticipants   = errors.New("会议至少需要2个不同的参与角色")
	ErrUnknownPersona          = errors.New("角色不存在")
	ErrParticipantExists       = errors.New("角色已在会议中")
	ErrParticipantNotInMeeting = errors.New("角色不在会议中")
)

// PersonaDirectory 会议存储依赖的角色查询
type PersonaDirectory interface {
	Exists(id string) bool
	Get(id string) (*models.Persona, bool)
}

// Store 会议存储：meetings.json 索引 + meetings/<id>.md 纪要
// 每次修改整体重写索引并重新渲染纪要，不做多进程并发控制
type Store struct {
	mu         sync.Mutex
	indexPath  string
	minutesDir string
	personas   PersonaDirectory
	newID      func() string
	now        func() time.Time
}

// StoreOption Store 选项
type StoreOption func(*Store)

// WithMeetingIDGenerator 替换会议 ID 生成方式
func WithMeetingIDGenerator(f func() string) StoreOption {
	return func(s *Store) { s.newID = f }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore 打开 dataDir 下的会议存储
func NewStore(dataDir string, personas PersonaDirectory, opts ...StoreOption) (*Store, error) {
	s := &Store{
		indexPath:  filepath.Join(dataDir, indexFileName),
		minutesDir: filepath.Join(dataDir, minutesDirName),
		personas:   personas,
		newID:      newMeetingID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.minutesDir, 0755); err != nil {
		return nil, fmt.Errorf("创建会议目录失败: %w", err)
	}
	return s, nil
}

func newMeetingID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Store) minutesPath(id string) string {
	return filepath.Join(s.minutesDir, id+".md")
}

// MinutesPath 纪要文件路径
func (s *Store) MinutesPath(id string) string {
	return s.minutesPath(filepath.Base(id))
}

func (s *Store) load() ([]*models.Meeting, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会议索引失败: %w", err)
	}
	var meetings []*models.Meeting
	if err := json.Unmarshal(data, &meetings); err != nil {
		return nil, fmt.Errorf("解析会议索引失败: %w", err)
	}
	for _, m := range meetings {
		if m.Rounds < 1 {
			m.Rounds = models.DefaultRounds
		}
		if m.Status == "" {
			m.Status = models.MeetingStatusCreated
		}
	}
	return meetings, nil
}

func (s *Store) save(meetings []*models.Meeting) error {
	if meetings == nil {
		meetings = []*models.Meeting{}
	}
	data, err := json.MarshalIndent(meetings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.indexPath, data, 0644); err != nil {
		return fmt.Errorf("写入会议索引失败: %w", err)
	}
	return nil
}

// writeMinutes 整体覆盖纪要文件
func (s *Store) writeMinutes(m *models.Meeting) error {
	doc, err := RenderMinutes(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.minutesPath(m.ID), []byte(doc), 0644); err != nil {
		return fmt.Errorf("写入会议纪要失败: %w", err)
	}
	return nil
}

func find(meetings []*models.Meeting, id string) (int, *models.Meeting) {
	for i, m := range meetings {
		if m.ID == id {
			return i, m
		}
	}
	return -1, nil
}

// dedupe 保序去重
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Store) personaName(id string) string {
	if p, ok := s.personas.Get(id); ok {
		return p.Name
	}
	return unknownPersonaName
}

// Create 创建会议，rounds 为 0 时使用默认轮次
func (s *Store) Create(topic string, participantIDs []string, rounds int) (*models.Meeting, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if rounds == 0 {
		rounds = models.DefaultRounds
	}
	if rounds < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRounds, rounds)
	}
	ids := dedupe(participantIDs)
	if len(ids) < MinParticipants {
		return nil, ErrNotEnoughParticipants
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if !s.personas.Exists(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
		}
		names = append(names, s.personaName(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meetings, err := s.load()
	if err != nil {
		return nil, err
	}
	m := &models.Meeting{
		ID:               s.newID(),
		Topic:            topic,
		ParticipantIDs:   ids,
		ParticipantNames: names,
		Rounds:           rounds,
		Status:           models.MeetingStatusCreated,
		CreatedAt:        s.now(),
	}
	if err := s.save(append(meetings, m)); err != nil {
		return nil, err
	}
	if err := s.writeMinutes(m); err != nil {
		return nil, err
	}
	log.Info("会议创建成功，ID: %s, 主题: %s, 参与角色: %s", m.ID, m.Topic, strings.Join(names, ", "))
	return m.Clone(), nil
}

// Get 按 ID 读取会议
func (s *Store) Get(id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meetings, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, m := find(meetings, id); m != nil {
		return m.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
}

// List 按创建顺序返回全部会议
func (s *Store) List() ([]*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// update 读取、修改、整体写回并重新渲染纪要
func (s *Store) update(id string, fn func(m *models.Meeting) error) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meetings, err := s.load()
	if err != nil {
		return nil, err
	}
	_, m := find(meetings, id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.save(meetings); err != nil {
		return nil, err
	}
	if err := s.writeMinutes(m); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// UpdateTopic 修改会议主题
func (s *Store) UpdateTopic(id, topic string) (*models.Meeting, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	return s.update(id, func(m *models.Meeting) error {
		m.Topic = topic
		return nil
	})
}

// UpdateRounds 修改讨论轮次
func (s *Store) UpdateRounds(id string, rounds int) (*models.Meeting, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRounds, rounds)
	}
	return s.update(id, func(m *models.Meeting) error {
		m.Rounds = rounds
		return nil
	})
}

// AddParticipant 添加参与角色
func (s *Store) AddParticipant(id, personaID string) (*models.Meeting, error) {
	return s.update(id, func(m *models.Meeting) error {
		if !s.personas.Exists(personaID) {
			return fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
		}
		if m.HasParticipant(personaID) {
			return fmt.Errorf("%w: %s", ErrParticipantExists, personaID)
		}
		m.ParticipantIDs = append(m.ParticipantIDs, personaID)
		m.ParticipantNames = append(m.ParticipantNames, s.personaName(personaID))
		return nil
	})
}

// RemoveParticipant 移除参与角色，名称按位置同步移除
func (s *Store) RemoveParticipant(id, personaID string) (*models.Meeting, error) {
	return s.update(id, func(m *models.Meeting) error {
		idx := -1
		for i, pid := range m.ParticipantIDs {
			if pid == personaID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrParticipantNotInMeeting, personaID)
		}
		m.ParticipantIDs = append(m.ParticipantIDs[:idx], m.ParticipantIDs[idx+1:]...)
		if idx < len(m.ParticipantNames) {
			m.ParticipantNames = append(m.ParticipantNames[:idx], m.ParticipantNames[idx+1:]...)
		}
		return nil
	})
}

// Save 整体写回会议记录（引擎运行结束时使用）
func (s *Store) Save(meeting *models.Meeting) error {
	_, err := s.update(meeting.ID, func(m *models.Meeting) error {
		*m = *meeting.Clone()
		return nil
	})
	return err
}

// Delete 删除会议记录与纪要文件
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meetings, err := s.load()
	if err != nil {
		return err
	}
	idx, m := find(meetings, id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMeetingNotFound, id)
	}
	if err := os.Remove(s.minutesPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除会议纪要失败: %w", err)
	}
	if err := s.save(append(meetings[:idx], meetings[idx+1:]...)); err != nil {
		return err
	}
	log.Info("会议已删除: %s", id)
	return nil
}

// Minutes 读取已渲染的纪要
func (s *Store) Minutes(id string) (string, error) {
	data, err := os.ReadFile(s.minutesPath(filepath.Base(id)))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrMinutesNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
