package meeting

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/run-bigpig/roundtable/internal/adk"
	"github.com/run-bigpig/roundtable/internal/adk/tools"
	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/models"
)

// 日志实例
var log = logger.New("Meeting")

// 超时与重试默认值
const (
	DefaultTurnTimeout    = 90 * time.Second // 单个角色发言的最大时长
	DefaultMaxRetries     = 2                // 单次发言最大重试次数
	DefaultRetryBaseDelay = 2 * time.Second  // 指数退避基础延迟
	RetryMaxDelay         = 15 * time.Second // 指数退避最大延迟
)

// 发言参数
const speakerTemperature = 0.7

// 结论文本
const (
	noConsensusConclusion = "经过多轮讨论，未能达成一致共识。"
	conclusionFailedFmt   = "结论生成失败: %v"
	speechErrorFmt        = "[错误: %v]"
)

var ErrMeetingRunning = errors.New("会议正在进行中")

// ErrMeetingNotCompleted 会议尚未结束，不能延续
var ErrMeetingNotCompleted = errors.New("会议尚未结束")

// Generator 模型网关，*adk.Gateway 满足该接口
type Generator interface {
	Generate(ctx context.Context, req adk.GenerateRequest) (*adk.GenerateResult, error)
	GenerateStream(ctx context.Context, req adk.GenerateRequest, onChunk func(string)) (*adk.GenerateResult, error)
}

// PersonaSource 讨论时查询角色名称与身份文档
type PersonaSource interface {
	Get(id string) (*models.Persona, bool)
	Identity(id string) (string, bool)
}

// isRetryableError 判断错误是否可重试
// 超时、主动取消、配置错误不重试；网络错误、API 临时错误可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	// 配置类错误不重试
	if strings.Contains(msg, "config") || strings.Contains(msg, "not found") {
		return false
	}
	return true
}

// retryRun 带指数退避的重试包装
// 在父 ctx 未取消的前提下，最多重试 maxRetries 次
func retryRun(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() (string, error)) (string, error) {
	result, err := fn()
	if err == nil || maxRetries <= 0 || !isRetryableError(err) {
		return result, err
	}

	lastErr := err
	for i := 1; i <= maxRetries; i++ {
		// 指数退避：baseDelay * 2^(i-1)，上限 RetryMaxDelay
		delay := baseDelay * time.Duration(1<<(i-1))
		if delay > RetryMaxDelay {
			delay = RetryMaxDelay
		}
		log.Warn("retry %d/%d after %v, last error: %v", i, maxRetries, delay, lastErr)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil {
			log.Info("retry %d/%d succeeded", i, maxRetries)
			return result, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("重试 %d 次后仍失败: %w", maxRetries, lastErr)
}

// 进度事件类型
const (
	EventMeetingStart = "meeting_start"
	EventRoundStart   = "round_start"
	EventTurnStart    = "turn_start"
	EventTurnSkip     = "turn_skip"
	EventTurnDone     = "turn_done"
	EventRoundDone    = "round_done"
	EventConsensus    = "consensus"
	EventConclusion   = "conclusion"
	EventMeetingDone  = "meeting_done"
)

// ProgressEvent 进度事件（实时反馈）
type ProgressEvent struct {
	Type        string `json:"type"`
	MeetingID   string `json:"meetingId"`
	Round       int    `json:"round,omitempty"`
	PersonaID   string `json:"personaId,omitempty"`
	PersonaName string `json:"personaName,omitempty"`
	Content     string `json:"content,omitempty"` // 发言、共识或结论文本
}

// ProgressCallback 进度回调函数类型
type ProgressCallback func(event ProgressEvent)

// Service 讨论引擎
type Service struct {
	store     *Store
	personas  PersonaSource
	gen       Generator
	moderator *Moderator

	rngMu sync.Mutex
	rng   *rand.Rand

	turnTimeout    time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	maxTokens      int

	mu      sync.Mutex
	running map[string]bool
}

// Option Service 选项
type Option func(*Service)

// WithRand 注入随机源，测试中用固定种子断言发言顺序
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithTurnTimeout 单次发言超时，0 表示不限制
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Service) { s.turnTimeout = d }
}

// WithMaxRetries 单次发言的最大重试次数
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

// WithRetryBaseDelay 重试退避基础间隔
func WithRetryBaseDelay(d time.Duration) Option {
	return func(s *Service) { s.retryBaseDelay = d }
}

// WithMaxOutputTokens 单次生成最大输出 token
func WithMaxOutputTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewService 创建讨论引擎
func NewService(store *Store, personas PersonaSource, gen Generator, opts ...Option) *Service {
	s := &Service{
		store:          store,
		personas:       personas,
		gen:            gen,
		rng:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		turnTimeout:    DefaultTurnTimeout,
		maxRetries:     DefaultMaxRetries,
		retryBaseDelay: DefaultRetryBaseDelay,
		maxTokens:      adk.DefaultMaxOutputTokens,
		running:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.moderator = NewModerator(gen, s.maxTokens)
	return s
}

// Moderator 返回主持人，菜单用于整理会议主题
func (s *Service) Moderator() *Moderator {
	return s.moderator
}

// Store 返回会议存储
func (s *Service) Store() *Store {
	return s.store
}

// IsRunning 会议是否正在本进程中运行
func (s *Service) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}

func (s *Service) markRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[id] {
		return false
	}
	s.running[id] = true
	return true
}

func (s *Service) clearRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// Status 读取会议，运行中时状态覆盖为 running
func (s *Service) Status(id string) (*models.Meeting, error) {
	m, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if s.IsRunning(id) {
		m.Status = models.MeetingStatusRunning
	}
	return m, nil
}

// shuffled 返回参与者的随机排列
func (s *Service) shuffled(ids []string) []string {
	order := append([]string(nil), ids...)
	s.rngMu.Lock()
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	s.rngMu.Unlock()
	return order
}

func emit(progress ProgressCallback, event ProgressEvent) {
	if progress != nil {
		progress(event)
	}
}

// Run 同步运行一次会议
// 单个角色或结论生成失败只影响内容，会议总会走到 completed；仅存储读写失败时返回错误
func (s *Service) Run(ctx context.Context, id string, prior *PriorContext, progress ProgressCallback) error {
	m, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if !s.markRunning(id) {
		return fmt.Errorf("%w: %s", ErrMeetingRunning, id)
	}
	defer s.clearRunning(id)

	log.Info("开始会议: %s (%s), 共 %d 轮", m.Topic, m.ID, m.Rounds)
	emit(progress, ProgressEvent{Type: EventMeetingStart, MeetingID: m.ID, Content: m.Topic})

	var (
		summary   strings.Builder
		rounds    []models.Round
		consensus string
		agreed    bool
	)

	for roundNum := 1; roundNum <= m.Rounds; roundNum++ {
		emit(progress, ProgressEvent{Type: EventRoundStart, MeetingID: m.ID, Round: roundNum})
		round := models.Round{Number: roundNum}

		for _, personaID := range s.shuffled(m.ParticipantIDs) {
			name := unknownPersonaName
			if p, ok := s.personas.Get(personaID); ok {
				name = p.Name
			}
			identity, ok := s.personas.Identity(personaID)
			if !ok {
				log.Warn("角色 %s (%s) 的身份文档不存在，跳过发言", name, personaID)
				emit(progress, ProgressEvent{Type: EventTurnSkip, MeetingID: m.ID, Round: roundNum, PersonaID: personaID, PersonaName: name})
				continue
			}

			emit(progress, ProgressEvent{Type: EventTurnStart, MeetingID: m.ID, Round: roundNum, PersonaID: personaID, PersonaName: name})
			var userPrompt string
			if roundNum == 1 {
				userPrompt = buildOpeningPrompt(m.Topic, prior)
			} else {
				userPrompt = buildFollowUpPrompt(m.Topic, summary.String())
			}

			content, err := s.speak(ctx, identity, userPrompt)
			if err != nil {
				log.Error("角色 %s 发言失败: %v", name, err)
				content = fmt.Sprintf(speechErrorFmt, err)
			} else {
				appendSummary(&summary, name, content)
			}
			round.Speeches = append(round.Speeches, models.Speech{PersonaID: personaID, PersonaName: name, Content: content})
			emit(progress, ProgressEvent{Type: EventTurnDone, MeetingID: m.ID, Round: roundNum, PersonaID: personaID, PersonaName: name, Content: content})
		}

		rounds = append(rounds, round)
		emit(progress, ProgressEvent{Type: EventRoundDone, MeetingID: m.ID, Round: roundNum})

		if roundConsensus(round.Speeches, m.ParticipantNames) {
			agreed = true
			consensus = consensusText(round.Speeches)
			log.Info("第 %d 轮达成共识", roundNum)
			emit(progress, ProgressEvent{Type: EventConsensus, MeetingID: m.ID, Round: roundNum, Content: consensus})
			break
		}
		log.Info("第 %d 轮结束，未达成共识", roundNum)
	}

	conclusion := noConsensusConclusion
	if agreed {
		conclusion = s.conclude(ctx, m.Topic, rounds)
	}
	emit(progress, ProgressEvent{Type: EventConclusion, MeetingID: m.ID, Content: conclusion})

	m.Discussion = rounds
	m.Consensus = consensus
	m.Conclusion = conclusion
	m.Status = models.MeetingStatusCompleted
	if err := s.store.Save(m); err != nil {
		return fmt.Errorf("保存会议结果失败: %w", err)
	}

	log.Info("会议完成: %s", m.ID)
	emit(progress, ProgressEvent{Type: EventMeetingDone, MeetingID: m.ID, Content: conclusion})
	return nil
}

// speak 生成单个角色的一次发言，带超时与重试
func (s *Service) speak(ctx context.Context, identity, userPrompt string) (string, error) {
	req := adk.GenerateRequest{
		SystemPrompt:    buildSpeakerSystemPrompt(identity),
		UserPrompt:      userPrompt,
		Tools:           []string{tools.WebSearchToolName},
		MaxOutputTokens: s.maxTokens,
		Temperature:     speakerTemperature,
	}
	return retryRun(ctx, s.maxRetries, s.retryBaseDelay, func() (string, error) {
		turnCtx, cancel := s.withTurnTimeout(ctx)
		defer cancel()
		res, err := s.gen.Generate(turnCtx, req)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	})
}

// conclude 生成结论，失败时返回占位文本
func (s *Service) conclude(ctx context.Context, topic string, rounds []models.Round) string {
	summaryCtx, cancel := s.withTurnTimeout(ctx)
	defer cancel()
	text, err := s.moderator.Summarize(summaryCtx, topic, rounds)
	if err != nil {
		log.Error("结论生成失败: %v", err)
		return fmt.Sprintf(conclusionFailedFmt, err)
	}
	return text
}

func (s *Service) withTurnTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.turnTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.turnTimeout)
}

// PrepareContinuation 以新主题创建延续会议，返回新会议与上次会议的参考信息
// 新会议与原会议参与者、轮次相同，存储上互不关联
func (s *Service) PrepareContinuation(id, newTopic string) (*models.Meeting, *PriorContext, error) {
	prev, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}

	if prev.Status != models.MeetingStatusCompleted {
		return nil, nil, fmt.Errorf("%w: %s", ErrMeetingNotCompleted, id)
	}

	conclusion := prev.Conclusion
	if conclusion == "" {
		// 旧记录没有结论字段，从纪要中解析
		if minutes, err := s.store.Minutes(id); err == nil {
			if text := ExtractConclusion(minutes); text != conclusionPendingText {
				conclusion = text
			}
		}
	}

	next, err := s.store.Create(newTopic, prev.ParticipantIDs, prev.Rounds)
	if err != nil {
		return nil, nil, fmt.Errorf("创建延续会议失败: %w", err)
	}
	return next, &PriorContext{Topic: prev.Topic, Conclusion: conclusion}, nil
}

// Continue 以新主题继续讨论并运行新会议
func (s *Service) Continue(ctx context.Context, id, newTopic string, progress ProgressCallback) (*models.Meeting, error) {
	next, prior, err := s.PrepareContinuation(id, newTopic)
	if err != nil {
		return nil, err
	}
	if err := s.Run(ctx, next.ID, prior, progress); err != nil {
		return nil, err
	}
	return s.store.Get(next.ID)
}
