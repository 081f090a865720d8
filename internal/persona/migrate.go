package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/run-bigpig/roundtable/internal/models"
)

const (
	migratedMarker = ".migrated"
	notesHeading   = "## 注意事项"
	notesPending   = "（待填写）"
)

// legacyPersona 以显示名命名目录的旧角色
type legacyPersona struct {
	dir         string
	name        string
	description string
}

// EnsureMigrated 将旧结构（目录名为角色名）迁移为 ID 目录并重建索引，
// 补齐缺失的注意事项段落，完成后写入 .migrated 标记。每个数据目录只执行一次。
func (s *Store) EnsureMigrated() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker := filepath.Join(s.dir, migratedMarker)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}

	legacy, err := s.findLegacy()
	if err != nil {
		return err
	}
	if len(legacy) > 0 {
		log.Info("检测到旧角色结构，正在迁移 %d 个角色...", len(legacy))
		if err := s.migrate(legacy); err != nil {
			return err
		}
	}

	if err := s.ensureNotesField(); err != nil {
		return err
	}
	if err := os.WriteFile(marker, nil, 0644); err != nil {
		return fmt.Errorf("写入迁移标记失败: %w", err)
	}
	return nil
}

// findLegacy 找出含 IDENTITY.md 且目录名不是 ID 的目录
func (s *Store) findLegacy() ([]legacyPersona, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("读取角色目录失败: %w", err)
	}

	var legacy []legacyPersona
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || IsID(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name(), identityFileName))
		if err != nil {
			continue
		}
		name, description := parseIdentity(string(data))
		if name == "" {
			name = e.Name()
		}
		legacy = append(legacy, legacyPersona{dir: e.Name(), name: name, description: description})
	}
	return legacy, nil
}

// parseIdentity 取 "## 名字" / "## 角色名称" 与 "## 角色描述" 的下一行
func parseIdentity(content string) (name, description string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i+1 >= len(lines) {
			break
		}
		next := strings.TrimSpace(lines[i+1])
		switch {
		case strings.Contains(line, "## 名字"), strings.Contains(line, "## 角色名称"):
			name = next
		case strings.Contains(line, "## 角色描述"):
			description = next
		}
	}
	return name, description
}

// migrate 移动目录、重写身份文档并把记录合并进索引
func (s *Store) migrate(legacy []legacyPersona) error {
	personas, err := s.loadIndex()
	if err != nil {
		return err
	}

	for _, lp := range legacy {
		p := models.Persona{ID: s.newID(), Name: lp.name, Description: lp.description}
		if err := os.Rename(filepath.Join(s.dir, lp.dir), filepath.Join(s.dir, p.ID)); err != nil {
			return fmt.Errorf("迁移角色 %s 失败: %w", lp.dir, err)
		}
		identity := RenderIdentity(lp.name, lp.description, notesPending)
		if err := os.WriteFile(s.identityPath(p.ID), []byte(identity), 0644); err != nil {
			return fmt.Errorf("重写身份文档失败: %w", err)
		}
		personas = append(personas, p)
	}

	if err := s.saveIndex(personas); err != nil {
		return err
	}
	log.Info("迁移完成，共 %d 个角色", len(legacy))
	return nil
}

// ensureNotesField 身份文档缺少注意事项段落时在末尾补上
func (s *Store) ensureNotesField() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("读取角色目录失败: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(s.dir, e.Name(), identityFileName)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		content := string(data)
		if strings.Contains(content, notesHeading) {
			continue
		}
		content = strings.TrimRight(content, " \t\r\n") + "\n\n" + notesHeading + "\n" + notesPending + "\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("补充注意事项失败: %w", err)
		}
	}
	return nil
}
