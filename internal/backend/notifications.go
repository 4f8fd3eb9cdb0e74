package backend

import (
	"context"
	"errors"
	"net/http"
)

// NotificationService wraps notification preference management.
type NotificationService struct {
	c *Client
}

// NotificationPreference is one (event type, channel) toggle.
type NotificationPreference struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Enabled bool   `json:"enabled"`
}

// Preferences returns the user's full preference matrix.
func (s *NotificationService) Preferences(ctx context.Context) ([]NotificationPreference, error) {
	var prefs []NotificationPreference
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/notifications/preferences",
		out:      &prefs,
		resource: "notifications.preferences",
	})
	return prefs, err
}

// Update toggles a single preference and returns the refreshed matrix.
func (s *NotificationService) Update(ctx context.Context, pref NotificationPreference) ([]NotificationPreference, error) {
	if pref.Type == "" || pref.Channel == "" {
		return nil, errors.New("backend: preference type and channel are required")
	}
	var prefs []NotificationPreference
	err := s.c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/v1/notifications/preferences",
		body:     pref,
		out:      &prefs,
		resource: "notifications.update",
	})
	return prefs, err
}

// BulkUpdate replaces the whole matrix in one call, used by the
// enable-all/disable-all controls.
func (s *NotificationService) BulkUpdate(ctx context.Context, prefs []NotificationPreference) ([]NotificationPreference, error) {
	if len(prefs) == 0 {
		return nil, errors.New("backend: empty preference set")
	}
	var out []NotificationPreference
	err := s.c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/v1/notifications/preferences/bulk",
		body: struct {
			Preferences []NotificationPreference `json:"preferences"`
		}{Preferences: prefs},
		out:      &out,
		resource: "notifications.bulk",
	})
	return out, err
}
