// Package persona 管理讨论角色：索引文件 personas.json 与每个角色的 IDENTITY.md
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/run-bigpig/roundtable/internal/logger"
	"github.com/run-bigpig/roundtable/internal/models"
)

var log = logger.New("Persona")

const (
	indexFileName    = "personas.json"
	personasDirName  = "personas"
	identityFileName = "IDENTITY.md"
	idLength         = 12
)

var (
	ErrEmptyName       = errors.New("角色名称不能为空")
	ErrDuplicateName   = errors.New("角色名称已存在")
	ErrPersonaNotFound = errors.New("角色不存在")
)

// Store 角色存储
// 每次修改都整体重写索引文件，不处理多进程并发写入
type Store struct {
	mu        sync.Mutex
	dir       string
	indexPath string
	newID     func() string
}

// Option Store 选项
type Option func(*Store)

// WithIDGenerator 替换 ID 生成方式
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// NewStore 打开 dataDir 下的角色存储，首次打开时执行旧目录结构迁移
func NewStore(dataDir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:       filepath.Join(dataDir, personasDirName),
		indexPath: filepath.Join(dataDir, indexFileName),
		newID:     NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("创建角色目录失败: %w", err)
	}
	if err := s.EnsureMigrated(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewID 生成 12 位小写十六进制角色 ID
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// IsID 判断是否为 12 位十六进制 ID
func IsID(s string) bool {
	if len(s) != idLength {
		return false
	}
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// RenderIdentity 生成身份文档
func RenderIdentity(name, description, notes string) string {
	return fmt.Sprintf("# 角色身份\n\n## 名字\n%s\n\n## 角色描述\n%s\n\n## 注意事项\n%s\n", name, description, notes)
}

func (s *Store) identityPath(id string) string {
	return filepath.Join(s.dir, id, identityFileName)
}

func (s *Store) loadIndex() ([]models.Persona, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取角色索引失败: %w", err)
	}
	var personas []models.Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("解析角色索引失败: %w", err)
	}
	return personas, nil
}

func (s *Store) saveIndex(personas []models.Persona) error {
	if personas == nil {
		personas = []models.Persona{}
	}
	data, err := json.MarshalIndent(personas, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.indexPath, data, 0644); err != nil {
		return fmt.Errorf("写入角色索引失败: %w", err)
	}
	return nil
}

// Create 创建角色，名称必须唯一
func (s *Store) Create(name, description, notes string) (*models.Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	for _, p := range personas {
		if p.Name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}

	p := models.Persona{ID: s.newID(), Name: name, Description: description}
	if err := os.MkdirAll(filepath.Join(s.dir, p.ID), 0755); err != nil {
		return nil, fmt.Errorf("创建角色目录失败: %w", err)
	}
	if err := os.WriteFile(s.identityPath(p.ID), []byte(RenderIdentity(name, description, notes)), 0644); err != nil {
		return nil, fmt.Errorf("写入身份文档失败: %w", err)
	}

	if err := s.saveIndex(append(personas, p)); err != nil {
		return nil, err
	}
	log.Info("角色 '%s' 创建成功，ID: %s", name, p.ID)
	return &p, nil
}

// Delete 删除角色目录与索引记录，不影响已引用它的会议
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, id)
	if !IsID(id) {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("删除角色目录失败: %w", err)
	}

	personas, err := s.loadIndex()
	if err != nil {
		return err
	}
	kept := personas[:0]
	for _, p := range personas {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if err := s.saveIndex(kept); err != nil {
		return err
	}
	log.Info("角色已删除: %s", id)
	return nil
}

// List 按名称升序返回全部角色
func (s *Store) List() ([]models.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(personas, func(i, j int) bool { return personas[i].Name < personas[j].Name })
	return personas, nil
}

// Get 按 ID 查找索引记录
func (s *Store) Get(id string) (*models.Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.loadIndex()
	if err != nil {
		log.Warn("%v", err)
		return nil, false
	}
	for _, p := range personas {
		if p.ID == id {
			return &p, true
		}
	}
	return nil, false
}

// Identity 读取身份文档
func (s *Store) Identity(id string) (string, bool) {
	if !IsID(id) {
		return "", false
	}
	data, err := os.ReadFile(s.identityPath(id))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Exists 身份文档存在即视为角色存在
func (s *Store) Exists(id string) bool {
	if !IsID(id) {
		return false
	}
	_, err := os.Stat(s.identityPath(id))
	return err == nil
}
