package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"payloom.io/internal/identity"
)

// Tokens is the credential pair issued by the platform's auth endpoints.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthService wraps the /api/auth endpoints. Login and Refresh are public
// routes: they never trigger the 401 refresh flow, which is what prevents
// the refresh loop the flow would otherwise recurse into.
type AuthService struct {
	c *Client
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Tokens
	User *identity.AuthUser `json:"user"`
}

// Login authenticates with credentials and returns the token pair plus the
// full user projection.
func (s *AuthService) Login(ctx context.Context, email, password string) (Tokens, *identity.AuthUser, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Tokens{}, nil, errors.New("backend: email and password are required")
	}
	var resp loginResponse
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/auth/login",
		body:     loginRequest{Email: email, Password: password},
		public:   true,
		out:      &resp,
		resource: "auth.login",
	})
	if err != nil {
		return Tokens{}, nil, err
	}
	return resp.Tokens, resp.User, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a fresh pair. The platform rotates
// refresh tokens: the returned pair replaces both stored tokens.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Tokens{}, ErrSessionExpired
	}
	var resp Tokens
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/auth/refresh",
		body:     refreshRequest{RefreshToken: refreshToken},
		public:   true,
		out:      &resp,
		resource: "auth.refresh",
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return Tokens{}, ErrSessionExpired
		}
		return Tokens{}, err
	}
	return resp, nil
}

// Me fetches the current user projection. The result replaces any cached
// user wholesale.
func (s *AuthService) Me(ctx context.Context) (*identity.AuthUser, error) {
	var user identity.AuthUser
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/auth/me",
		out:      &user,
		resource: "auth.me",
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the upstream session. Best-effort: local teardown happens
// regardless of the result.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/auth/logout",
		resource: "auth.logout",
	})
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged upstream.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// UpdateProfile submits profile changes and returns the refreshed user.
func (s *AuthService) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*identity.AuthUser, error) {
	var user identity.AuthUser
	err := s.c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/auth/profile",
		body:     upd,
		out:      &user,
		resource: "auth.profile",
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
