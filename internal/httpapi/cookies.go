package httpapi

import (
	"net/http"
	"time"

	"payloom.io/internal/session"
)

const (
	sessionCookie     = "payloom_session"
	tokenCookie       = "payloom_token"
	tokenExpiryCookie = "payloom_token_expiry"
)

// setSessionCookies issues the session JWT plus the access-token pair the
// SPA reads for its own bookkeeping. The refresh token never leaves the
// server side.
func (a *API) setSessionCookies(w http.ResponseWriter, rec *session.Record) error {
	token, err := session.MintToken(rec.ID, a.mgr.TTL())
	if err != nil {
		return err
	}
	base := http.Cookie{
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  rec.ExpiresAt,
	}

	sc := base
	sc.Name = sessionCookie
	sc.Value = token
	sc.HttpOnly = true
	http.SetCookie(w, &sc)

	tc := base
	tc.Name = tokenCookie
	tc.Value = rec.AccessToken
	tc.HttpOnly = true
	tc.Expires = rec.AccessExpiresAt
	http.SetCookie(w, &tc)

	ec := base
	ec.Name = tokenExpiryCookie
	ec.Value = rec.AccessExpiresAt.UTC().Format(time.RFC3339)
	ec.Expires = rec.AccessExpiresAt
	http.SetCookie(w, &ec)
	return nil
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{sessionCookie, tokenCookie, tokenExpiryCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   a.cfg.CookieDomain,
			Secure:   a.cfg.SecureCookies,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
