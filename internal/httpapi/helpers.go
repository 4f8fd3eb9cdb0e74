package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"payloom.io/internal/backend"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData wraps v in the console's success envelope.
func writeData(w http.ResponseWriter, code int, v any) {
	writeJSON(w, code, map[string]any{
		"success": true,
		"data":    v,
	})
}

// writePage wraps a listing plus its pagination block.
func writePage(w http.ResponseWriter, items any, meta backend.Meta) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": meta,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": msg,
		},
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleBackendError maps upstream failures onto console responses. The
// upstream message is carried through verbatim whenever it exists.
func handleBackendError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	msg := "internal error"

	switch {
	case errors.Is(err, backend.ErrSessionExpired):
		status, code, msg = http.StatusUnauthorized, "session_expired", "session expired"
	case errors.Is(err, backend.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, "unauthorized", "unauthorized"
	case errors.Is(err, backend.ErrForbidden):
		status, code, msg = http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, backend.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, backend.ErrConflict):
		status, code, msg = http.StatusConflict, "conflict", "conflict"
	case errors.Is(err, backend.ErrInvalidInput):
		status, code, msg = http.StatusUnprocessableEntity, "invalid_input", "invalid input"
	case errors.Is(err, backend.ErrUnavailable):
		status, code, msg = http.StatusBadGateway, "upstream_unavailable", "platform API unavailable"
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			code = apiErr.Code
		}
		if apiErr.Message != "" {
			msg = apiErr.Message
		}
	}
	writeError(w, r, status, code, msg)
}

func pageParams(r *http.Request) (page, per int) {
	q := r.URL.Query()
	page = intParam(q.Get("page"))
	per = intParam(q.Get("per_page"))
	return page, per
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
