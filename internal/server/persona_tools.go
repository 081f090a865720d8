package server

import (
	"context"
)

type roleIDInput struct {
	RoleID string `json:"role_id" jsonschema:"角色ID"`
}

type createRoleInput struct {
	Name        string `json:"name" jsonschema:"角色名称"`
	Description string `json:"description" jsonschema:"角色描述"`
	Notes       string `json:"notes,omitempty" jsonschema:"注意事项"`
}

type emptyInput struct{}

func (s *Server) registerPersonaTools() {
	addTool(s, "list_roles", "列出所有角色", s.listRoles)
	addTool(s, "get_role_identity", "获取角色IDENTITY信息", s.getRoleIdentity)
	addTool(s, "create_role", "创建新角色", s.createRole)
	addTool(s, "delete_role", "删除角色", s.deleteRole)
}

func (s *Server) listRoles(ctx context.Context, _ emptyInput) (string, error) {
	personas, err := s.personas.List()
	if err != nil {
		return "", err
	}
	return jsonText(personas)
}

func (s *Server) getRoleIdentity(ctx context.Context, in roleIDInput) (string, error) {
	identity, ok := s.personas.Identity(in.RoleID)
	if !ok {
		return "角色不存在", nil
	}
	return identity, nil
}

func (s *Server) createRole(ctx context.Context, in createRoleInput) (string, error) {
	p, err := s.personas.Create(in.Name, in.Description, in.Notes)
	if err != nil {
		return failure("创建失败", err), nil
	}
	return "创建成功，ID: " + p.ID, nil
}

func (s *Server) deleteRole(ctx context.Context, in roleIDInput) (string, error) {
	if err := s.personas.Delete(in.RoleID); err != nil {
		return failure("删除失败", err), nil
	}
	return "删除成功", nil
}
