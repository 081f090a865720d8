package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sequentialIDs 生成确定的 12 位十六进制 ID
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%012x", n)
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir, WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("NewStore() 失败: %v", err)
	}
	return s, dir
}

func TestCreateAndRead(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.Create("Alice", "产品经理", "说话简洁")
	if err != nil {
		t.Fatalf("Create() 失败: %v", err)
	}
	if !IsID(p.ID) {
		t.Errorf("ID %q 不是 12 位十六进制", p.ID)
	}

	identity, ok := s.Identity(p.ID)
	if !ok {
		t.Fatal("Identity() 未找到身份文档")
	}
	want := "# 角色身份\n\n## 名字\nAlice\n\n## 角色描述\n产品经理\n\n## 注意事项\n说话简洁\n"
	if identity != want {
		t.Errorf("Identity() = %q, 期望 %q", identity, want)
	}
	if !s.Exists(p.ID) {
		t.Error("Exists() = false")
	}
	got, ok := s.Get(p.ID)
	if !ok || got.Name != "Alice" || got.Description != "产品经理" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create("Alice", "", ""); err != nil {
		t.Fatal(err)
	}
	_, err := s.Create("Alice", "another", "")
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Create() 错误 = %v, 期望 ErrDuplicateName", err)
	}
	list, _ := s.List()
	if len(list) != 1 {
		t.Errorf("重名创建不应修改存储, 实际 %d 个角色", len(list))
	}

	if _, err := s.Create("  ", "", ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("空名称错误 = %v", err)
	}
}

func TestListSortedByName(t *testing.T) {
	s, _ := newTestStore(t)
	for _, name := range []string{"Carol", "Alice", "Bob"} {
		if _, err := s.Create(name, "", ""); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "Alice,Bob,Carol" {
		t.Errorf("List() 名称 = %v", names)
	}
}

func TestDelete(t *testing.T) {
	s, dir := newTestStore(t)
	p, _ := s.Create("Alice", "", "")

	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("Delete() 失败: %v", err)
	}
	if s.Exists(p.ID) {
		t.Error("删除后角色仍存在")
	}
	if _, err := os.Stat(filepath.Join(dir, "personas", p.ID)); !os.IsNotExist(err) {
		t.Error("角色目录未删除")
	}
	if _, ok := s.Get(p.ID); ok {
		t.Error("索引记录未删除")
	}
	if err := s.Delete(p.ID); !errors.Is(err, ErrPersonaNotFound) {
		t.Errorf("再次 Delete() 错误 = %v, 期望 ErrPersonaNotFound", err)
	}
	if err := s.Delete("../escape"); !errors.Is(err, ErrPersonaNotFound) {
		t.Errorf("Delete(非法ID) 错误 = %v", err)
	}
}

func TestExistsIsAuthoritativeOnIdentity(t *testing.T) {
	s, dir := newTestStore(t)
	p, _ := s.Create("Alice", "", "")
	if err := os.Remove(filepath.Join(dir, "personas", p.ID, "IDENTITY.md")); err != nil {
		t.Fatal(err)
	}
	if s.Exists(p.ID) {
		t.Error("缺少 IDENTITY.md 时 Exists() 应为 false")
	}
	if _, ok := s.Identity(p.ID); ok {
		t.Error("缺少身份文档时 Identity() 应失败")
	}
}
