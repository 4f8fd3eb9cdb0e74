package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"payloom.io/internal/identity"
)

// RoleService wraps role and membership management.
type RoleService struct {
	c *Client
}

// permissionList tolerates both wire shapes the backend emits for
// permissions: a plain ["view-transactions", ...] array and an expanded
// [{"name": "view-transactions", ...}, ...] array of objects. Either way it
// normalizes to the flat name list the rest of the code works with.
type permissionList []string

func (p *permissionList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*p = names
		return nil
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &objs); err != nil {
		return err
	}
	names = make([]string, 0, len(objs))
	for _, o := range objs {
		if o.Name != "" {
			names = append(names, o.Name)
		}
	}
	*p = names
	return nil
}

type wireRole struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	GuardName   string         `json:"guard_name"`
	System      bool           `json:"is_system"`
	Permissions permissionList `json:"permissions"`
}

func (w wireRole) role() identity.Role {
	return identity.Role{
		ID:          w.ID,
		Name:        w.Name,
		GuardName:   w.GuardName,
		System:      w.System,
		Permissions: w.Permissions,
	}
}

// List returns all roles visible to the organization.
func (s *RoleService) List(ctx context.Context) ([]identity.Role, error) {
	var wire []wireRole
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/roles",
		out:      &wire,
		resource: "roles.list",
	})
	if err != nil {
		return nil, err
	}
	roles := make([]identity.Role, 0, len(wire))
	for _, w := range wire {
		roles = append(roles, w.role())
	}
	return roles, nil
}

// Get fetches one role with its permission set.
func (s *RoleService) Get(ctx context.Context, id string) (identity.Role, error) {
	var wire wireRole
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/roles/" + url.PathEscape(id),
		out:      &wire,
		resource: "roles.get",
	})
	return wire.role(), err
}

// RoleRequest creates or renames a role.
type RoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// Create adds a custom role.
func (s *RoleService) Create(ctx context.Context, req RoleRequest) (identity.Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return identity.Role{}, errors.New("backend: role name is required")
	}
	var wire wireRole
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/v1/roles",
		body:     req,
		out:      &wire,
		resource: "roles.create",
	})
	return wire.role(), err
}

// Update renames a role.
func (s *RoleService) Update(ctx context.Context, id string, req RoleRequest) (identity.Role, error) {
	var wire wireRole
	err := s.c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/v1/roles/" + url.PathEscape(id),
		body:     req,
		out:      &wire,
		resource: "roles.update",
	})
	return wire.role(), err
}

// Delete removes a custom role. System roles are rejected upstream.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/api/v1/roles/" + url.PathEscape(id),
		resource: "roles.delete",
	})
}

// SetPermissions replaces a role's permission set wholesale.
func (s *RoleService) SetPermissions(ctx context.Context, id string, permissions []string) (identity.Role, error) {
	var wire wireRole
	err := s.c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/v1/roles/" + url.PathEscape(id) + "/permissions",
		body: struct {
			Permissions []string `json:"permissions"`
		}{Permissions: permissions},
		out:      &wire,
		resource: "roles.permissions",
	})
	return wire.role(), err
}

// Permissions returns the platform's permission catalog, normalized to flat
// names.
func (s *RoleService) Permissions(ctx context.Context) ([]string, error) {
	var list permissionList
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/permissions",
		out:      &list,
		resource: "roles.catalog",
	})
	return list, err
}

// Member is an organization user row from the membership listing.
type Member struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Members lists the organization's users with their role names.
func (s *RoleService) Members(ctx context.Context, page, per int) ([]Member, Meta, error) {
	q := pageQuery(page, per)
	var members []Member
	var meta Meta
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/users",
		query:    q,
		out:      &members,
		meta:     &meta,
		resource: "users.list",
	})
	return members, meta, err
}

// Assign grants a role to a user.
func (s *RoleService) Assign(ctx context.Context, userID, roleID string) error {
	return s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/users/" + url.PathEscape(userID) + "/roles",
		body: struct {
			RoleID string `json:"role_id"`
		}{RoleID: roleID},
		resource: "users.assign",
	})
}

// Unassign revokes a role from a user.
func (s *RoleService) Unassign(ctx context.Context, userID, roleID string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/api/v1/users/" + url.PathEscape(userID) + "/roles/" + url.PathEscape(roleID),
		resource: "users.unassign",
	})
}
