package httpapi

import (
	"context"
	"net/http"
	"strings"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/identity"
)

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRoles(w, r)
	case http.MethodPost:
		a.createRole(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	key := cache.Key("roles", rec.ID)
	roles, err := cache.Fetch(r.Context(), a.cache, key, cache.TTLDefault, func(ctx context.Context) ([]identity.Role, error) {
		return a.api.Roles.List(ctx)
	})
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, roles)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	_, ok := a.requirePermission(w, r, access.PermManageRoles)
	if !ok {
		return
	}
	rec, _ := a.requireSession(w, r)
	var req backend.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	role, err := a.api.Roles.Create(r.Context(), req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("roles", rec.ID))
	audit.LogEvent(r.Context(), "role.create", map[string]any{"role_id": role.ID, "name": role.Name})
	writeData(w, http.StatusCreated, role)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	rest := trimResourceID(r.URL.Path, "/v1/roles/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if id, okSuffix := strings.CutSuffix(rest, "/permissions"); okSuffix {
		a.setRolePermissions(w, r, strings.TrimSuffix(id, "/"))
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRole(w, r, rest)
	case http.MethodPut:
		a.updateRole(w, r, rest)
	case http.MethodDelete:
		a.deleteRole(w, r, rest)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireSession(w, r); !ok {
		return
	}
	role, err := a.api.Roles.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := a.requirePermission(w, r, access.PermManageRoles)
	if !ok {
		return
	}
	rec, _ := a.requireSession(w, r)
	role, err := a.api.Roles.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	if !access.CanModifyRole(user, role) {
		writeError(w, r, http.StatusForbidden, "forbidden", "system roles cannot be modified")
		return
	}
	var req backend.RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	updated, err := a.api.Roles.Update(r.Context(), id, req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("roles", rec.ID))
	a.mgr.InvalidateUser(rec.ID)
	audit.LogEvent(r.Context(), "role.update", map[string]any{"role_id": id})
	writeData(w, http.StatusOK, updated)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := a.requirePermission(w, r, access.PermManageRoles)
	if !ok {
		return
	}
	rec, _ := a.requireSession(w, r)
	role, err := a.api.Roles.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	if !access.CanDeleteRole(user, role) {
		writeError(w, r, http.StatusForbidden, "forbidden", "system roles cannot be deleted")
		return
	}
	if err := a.api.Roles.Delete(r.Context(), id); err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("roles", rec.ID))
	a.mgr.InvalidateUser(rec.ID)
	audit.LogEvent(r.Context(), "role.delete", map[string]any{"role_id": id, "name": role.Name})
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) setRolePermissions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	user, ok := a.requirePermission(w, r, access.PermManageRoles)
	if !ok {
		return
	}
	rec, _ := a.requireSession(w, r)
	role, err := a.api.Roles.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	if !access.CanModifyRole(user, role) {
		writeError(w, r, http.StatusForbidden, "forbidden", "system roles cannot be modified")
		return
	}
	var req struct {
		Permissions []string `json:"permissions"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	updated, err := a.api.Roles.SetPermissions(r.Context(), id, req.Permissions)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("roles", rec.ID))
	a.mgr.InvalidateUser(rec.ID)
	audit.LogEvent(r.Context(), "role.permissions_update", map[string]any{
		"role_id": id, "count": len(req.Permissions),
	})
	writeData(w, http.StatusOK, updated)
}

func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireSession(w, r); !ok {
		return
	}
	// The catalog is platform-global and changes only on deploys.
	perms, err := cache.Fetch(r.Context(), a.cache, cache.Key("permissions"), cache.TTLReference, func(ctx context.Context) ([]string, error) {
		return a.api.Roles.Permissions(ctx)
	})
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, perms)
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermManageUsers); !ok {
		return
	}
	page, per := pageParams(r)
	members, meta, err := a.api.Roles.Members(r.Context(), page, per)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writePage(w, members, meta)
}

func (a *API) handleMemberRoles(w http.ResponseWriter, r *http.Request) {
	rest := trimResourceID(r.URL.Path, "/v1/users/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "roles" {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 2 && r.Method == http.MethodPost:
		a.assignRole(w, r, userID)
	case len(parts) == 3 && r.Method == http.MethodDelete:
		a.unassignRole(w, r, userID, parts[2])
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := a.requirePermission(w, r, access.PermManageUsers); !ok {
		return
	}
	var req struct {
		RoleID string `json:"role_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.RoleID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "role_id is required")
		return
	}
	if err := a.api.Roles.Assign(r.Context(), userID, req.RoleID); err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.role_assign", map[string]any{
		"target_user_id": userID, "role_id": req.RoleID,
	})
	writeData(w, http.StatusOK, map[string]any{"assigned": true})
}

func (a *API) unassignRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if _, ok := a.requirePermission(w, r, access.PermManageUsers); !ok {
		return
	}
	if err := a.api.Roles.Unassign(r.Context(), userID, roleID); err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "user.role_unassign", map[string]any{
		"target_user_id": userID, "role_id": roleID,
	})
	writeData(w, http.StatusOK, map[string]any{"unassigned": true})
}
