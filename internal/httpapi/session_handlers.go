package httpapi

import (
	"net/http"
	"strings"

	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	rec, err := a.mgr.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	if err := a.setSessionCookies(w, rec); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "could not issue session")
		return
	}

	auditCtx := session.ContextWithRecord(r.Context(), rec)
	auditCtx = session.ContextWithUser(auditCtx, rec.User)
	audit.LogEvent(auditCtx, "session.login", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeData(w, http.StatusOK, map[string]any{
		"user":       rec.User,
		"expires_at": rec.AccessExpiresAt,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	if err := a.mgr.Refresh(r.Context(), rec); err != nil {
		_ = a.mgr.Invalidate(r.Context(), rec)
		a.clearSessionCookies(w)
		handleBackendError(w, r, backend.ErrSessionExpired)
		return
	}
	if err := a.setSessionCookies(w, rec); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "could not issue session")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"expires_at": rec.AccessExpiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	if err := a.mgr.Logout(r.Context(), rec); err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.pollers.drop(rec.ID)
	a.clearSessionCookies(w)
	audit.LogEvent(r.Context(), "session.logout", nil)
	writeData(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, _, err := a.currentUser(r)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	var req backend.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	user, err := a.api.Auth.UpdateProfile(r.Context(), req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	// The refreshed projection replaces the cached one wholesale.
	if err := a.mgr.ReplaceUser(r.Context(), rec, user); err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(session.ContextWithUser(r.Context(), user), "session.profile_update", nil)
	writeData(w, http.StatusOK, user)
}
