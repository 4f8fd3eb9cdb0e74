package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"payloom.io/internal/obs"
	"payloom.io/internal/session"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one recorded console action.
type Entry struct {
	Time      time.Time
	Event     string
	RequestID string
	UserID    string
	Fields    map[string]any
}

// Sink persists audit entries beyond the process log.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

var (
	sinkMu sync.RWMutex
	sink   Sink
)

// SetSink installs the persistent audit sink. Pass nil to log only.
func SetSink(s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = s
}

func currentSink() Sink {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// LogEvent writes an audit entry enriched with request and user context. The
// entry always reaches the process log; persistence through the sink is best
// effort, and a sink failure is logged here rather than pushed back onto
// every call site. A blank event name logs nothing.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	entry := Entry{
		Time:   time.Now().UTC(),
		Event:  event,
		Fields: map[string]any{},
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry.RequestID = rid
	}
	if userID, ok := session.UserIDFromContext(ctx); ok {
		entry.UserID = userID
	}
	for k, v := range fields {
		entry.Fields[k] = v
	}

	line := map[string]any{
		"ts":     entry.Time.Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  entry.Event,
		"fields": entry.Fields,
	}
	if entry.RequestID != "" {
		line["request_id"] = entry.RequestID
	}
	if entry.UserID != "" {
		line["user_id"] = entry.UserID
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))

	if s := currentSink(); s != nil {
		if err := s.Append(ctx, entry); err != nil {
			failure, merr := json.Marshal(map[string]any{
				"ts":    time.Now().UTC().Format(time.RFC3339Nano),
				"type":  "audit",
				"event": "audit_sink_error",
				"fields": map[string]any{
					"failed_event": entry.Event,
					"error":        err.Error(),
				},
			})
			if merr == nil {
				obs.Logger().Println(string(failure))
			}
		}
	}
}
