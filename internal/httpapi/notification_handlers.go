package httpapi

import (
	"net/http"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
)

func (a *API) handleNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPreferences(w, r)
	case http.MethodPut:
		a.updatePreference(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) listPreferences(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireSession(w, r); !ok {
		return
	}
	prefs, err := a.api.Notifications.Preferences(r.Context())
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, prefs)
}

func (a *API) updatePreference(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermManageNotifications); !ok {
		return
	}
	var req backend.NotificationPreference
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	prefs, err := a.api.Notifications.Update(r.Context(), req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "notifications.update", map[string]any{
		"type": req.Type, "channel": req.Channel, "enabled": req.Enabled,
	})
	writeData(w, http.StatusOK, prefs)
}

func (a *API) handleNotificationBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermManageNotifications); !ok {
		return
	}
	var req struct {
		Preferences []backend.NotificationPreference `json:"preferences"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Preferences) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "preferences are required")
		return
	}
	prefs, err := a.api.Notifications.BulkUpdate(r.Context(), req.Preferences)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "notifications.bulk_update", map[string]any{
		"count": len(req.Preferences),
	})
	writeData(w, http.StatusOK, prefs)
}
