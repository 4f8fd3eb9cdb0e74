package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"payloom.io/internal/access"
	"payloom.io/internal/backend"
	"payloom.io/internal/identity"
	"payloom.io/internal/session"
)

var publicPaths = []string{
	"/v1/session/login",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withSession resolves the session cookie into a record and binds the
// per-request token source so upstream calls can refresh transparently.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "session cookie missing")
			return
		}
		sessionID, err := session.ParseToken(cookie.Value)
		if err != nil {
			a.clearSessionCookies(w)
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid session")
			return
		}
		rec, err := a.mgr.Find(r.Context(), sessionID)
		if err != nil {
			a.clearSessionCookies(w)
			switch {
			case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrRevoked):
				writeError(w, r, http.StatusUnauthorized, "session_expired", "session expired")
			default:
				writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
			}
			return
		}

		ctx := session.ContextWithRecord(r.Context(), rec)
		ctx = backend.ContextWithTokenSource(ctx, &sessionTokenSource{
			api: a,
			w:   w,
			rec: rec,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionTokenSource adapts one request's session record to the upstream
// client. Refresh re-issues cookies eagerly, before any response body is
// written; Invalidate revokes the record and clears them.
type sessionTokenSource struct {
	api *API
	w   http.ResponseWriter
	rec *session.Record
}

func (s *sessionTokenSource) Token(context.Context) (string, error) {
	return s.rec.AccessToken, nil
}

func (s *sessionTokenSource) Refresh(ctx context.Context) (string, error) {
	if err := s.api.mgr.Refresh(ctx, s.rec); err != nil {
		return "", err
	}
	if err := s.api.setSessionCookies(s.w, s.rec); err != nil {
		return "", err
	}
	return s.rec.AccessToken, nil
}

func (s *sessionTokenSource) Invalidate(ctx context.Context) error {
	err := s.api.mgr.Invalidate(ctx, s.rec)
	s.api.pollers.drop(s.rec.ID)
	s.api.clearSessionCookies(s.w)
	return err
}

// pollerTokenSource authorizes background polls that outlive the request
// that started them. Tokens are re-read from the store on every call so
// rotation done by request traffic is picked up, and a 401 on the poll
// itself refreshes through the manager. Invalidate is a no-op: a failed
// background refresh may just have lost the rotation race, so tearing the
// session down is left to request traffic.
type pollerTokenSource struct {
	mgr       *session.Manager
	sessionID string
}

func (s *pollerTokenSource) Token(ctx context.Context) (string, error) {
	rec, err := s.mgr.Find(ctx, s.sessionID)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

func (s *pollerTokenSource) Refresh(ctx context.Context) (string, error) {
	rec, err := s.mgr.Find(ctx, s.sessionID)
	if err != nil {
		return "", err
	}
	if err := s.mgr.Refresh(ctx, rec); err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

func (s *pollerTokenSource) Invalidate(context.Context) error { return nil }

// currentUser resolves the session's user projection, cached per session.
func (a *API) currentUser(r *http.Request) (*identity.AuthUser, *session.Record, error) {
	rec, ok := session.RecordFromContext(r.Context())
	if !ok {
		return nil, nil, errors.New("no session in context")
	}
	user, err := a.mgr.CurrentUser(r.Context(), rec)
	if err != nil {
		return nil, rec, err
	}
	return user, rec, nil
}

// requirePermission loads the user and enforces a permission; it writes the
// response itself on failure and returns false.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) (*identity.AuthUser, bool) {
	user, _, err := a.currentUser(r)
	if err != nil {
		handleBackendError(w, r, err)
		return nil, false
	}
	if !access.HasPermission(user, perm) {
		writeError(w, r, http.StatusForbidden, "forbidden", "missing permission: "+perm)
		return nil, false
	}
	return user, true
}

// requireSession returns the active record without a permission check.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) (*session.Record, bool) {
	rec, ok := session.RecordFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return nil, false
	}
	return rec, true
}

func trimResourceID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	return strings.TrimSuffix(id, "/")
}
