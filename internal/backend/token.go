package backend

import (
	"context"
	"errors"
)

// TokenSource supplies the bearer token for upstream calls and owns the
// refresh lifecycle. The gateway binds one source per console session; the
// client only ever asks for a token, asks once for a refresh on 401, and
// reports the session dead when the refresh fails too.
type TokenSource interface {
	// Token returns the current access token.
	Token(ctx context.Context) (string, error)

	// Refresh exchanges the refresh token for a new access token and
	// returns it. Called at most once per request.
	Refresh(ctx context.Context) (string, error)

	// Invalidate tears down all local session state (persisted record,
	// cookies, cached user). Called when the refresh itself fails.
	Invalidate(ctx context.Context) error
}

type tokenSourceKey struct{}

// ContextWithTokenSource binds the per-session token source to the context.
func ContextWithTokenSource(ctx context.Context, ts TokenSource) context.Context {
	if ts == nil {
		return ctx
	}
	return context.WithValue(ctx, tokenSourceKey{}, ts)
}

// TokenSourceFromContext extracts the bound token source, if any.
func TokenSourceFromContext(ctx context.Context) (TokenSource, bool) {
	if ctx == nil {
		return nil, false
	}
	ts, ok := ctx.Value(tokenSourceKey{}).(TokenSource)
	return ts, ok && ts != nil
}

// StaticToken is a TokenSource with no refresh capability, used by tests
// and one-shot tooling.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

func (s StaticToken) Refresh(context.Context) (string, error) {
	return "", errors.New("backend: static token cannot be refreshed")
}

func (s StaticToken) Invalidate(context.Context) error { return nil }
