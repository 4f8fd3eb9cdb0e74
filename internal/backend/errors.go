package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized   = errors.New("backend: unauthorized")
	ErrForbidden      = errors.New("backend: forbidden")
	ErrNotFound       = errors.New("backend: not found")
	ErrConflict       = errors.New("backend: conflict")
	ErrInvalidInput   = errors.New("backend: invalid input")
	ErrUnavailable    = errors.New("backend: unavailable")
	ErrSessionExpired = errors.New("backend: session expired")
)

// APIError carries the backend's error envelope. Message is preserved
// verbatim: for exports and validation failures the backend's wording is
// user-presentable and must not be replaced with a generic message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("backend: %s", e.Message)
}

// Unwrap maps HTTP status classes onto the package sentinels so callers can
// branch with errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return nil
}
