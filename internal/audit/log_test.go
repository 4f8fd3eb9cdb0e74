package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"payloom.io/internal/identity"
	"payloom.io/internal/obs"
	"payloom.io/internal/session"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = session.ContextWithRecord(ctx, &session.Record{ID: "sess-1", UserID: "user-42"})

	LogEvent(ctx, "session.login", map[string]any{"email": "ada@example.com"})

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "session.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email"] != "ada@example.com" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventBlankNameLogsNothing(t *testing.T) {
	buf := captureLog(t)
	LogEvent(context.Background(), "   ", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestLogEventPrefersUserProjection(t *testing.T) {
	buf := captureLog(t)

	ctx := session.ContextWithRecord(context.Background(), &session.Record{ID: "sess-1"})
	ctx = session.ContextWithUser(ctx, &identity.AuthUser{ID: "user-7"})

	LogEvent(ctx, "session.profile_update", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["user_id"] != "user-7" {
		t.Fatalf("user_id = %v, want user-7", entry["user_id"])
	}
}

type captureSink struct {
	entries []Entry
	err     error
}

func (c *captureSink) Append(_ context.Context, entry Entry) error {
	c.entries = append(c.entries, entry)
	return c.err
}

func TestLogEventReachesSink(t *testing.T) {
	captureLog(t)
	sink := &captureSink{}
	SetSink(sink)
	t.Cleanup(func() { SetSink(nil) })

	ctx := WithRequestID(context.Background(), "req-9")
	LogEvent(ctx, "role.delete", map[string]any{"role_id": "role_3"})
	if len(sink.entries) != 1 {
		t.Fatalf("sink entries = %d, want 1", len(sink.entries))
	}
	got := sink.entries[0]
	if got.Event != "role.delete" || got.RequestID != "req-9" || got.Fields["role_id"] != "role_3" {
		t.Fatalf("entry = %+v", got)
	}
}

func TestLogEventReportsSinkFailure(t *testing.T) {
	buf := captureLog(t)
	SetSink(&captureSink{err: errors.New("connection reset")})
	t.Cleanup(func() { SetSink(nil) })

	LogEvent(context.Background(), "payout_account.create", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want entry plus sink error: %q", len(lines), lines)
	}
	var failure map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &failure); err != nil {
		t.Fatalf("sink error line not valid JSON: %v", err)
	}
	if failure["event"] != "audit_sink_error" {
		t.Fatalf("event = %v", failure["event"])
	}
	fields, ok := failure["fields"].(map[string]any)
	if !ok || fields["failed_event"] != "payout_account.create" {
		t.Fatalf("fields = %v", failure["fields"])
	}
}
