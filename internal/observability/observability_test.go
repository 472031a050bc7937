package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"sales-explorer/internal/config"
)

func TestNewLogger_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggerConfig{Level: "debug", Format: "json"}, &buf)

	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")
	logger.With("component", "test").InfoContext(ctx, "snapshot computed", "rows", 4)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	for key, want := range map[string]any{
		"msg":        "snapshot computed",
		"request_id": "req-1",
		"session_id": "sess-1",
		"component":  "test",
		"rows":       float64(4),
	} {
		if record[key] != want {
			t.Errorf("%s = %v, want %v", key, record[key], want)
		}
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggerConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %s", buf.String())
	}
	logger.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("msg=shown")) {
		t.Errorf("expected a text record, got %s", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(newLogger(config.LoggerConfig{Level: "debug", Format: "json"}, &buf))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, parent := StartSpan(context.Background(), "GET /api/totals")
	_, child := StartSpan(ctx, "pipeline.snapshot")

	if child.TraceID != parent.TraceID || child.ParentID != parent.SpanID {
		t.Errorf("child span should join the parent trace: %+v", child)
	}
	if GetSpan(ctx) != parent {
		t.Error("context should carry the parent span")
	}

	child.SetTag("rows", "4")
	child.SetError(errors.New("no dataset loaded"))
	child.Finish()
	child.Finish()

	if child.Status != SpanStatusError || child.Error != "no dataset loaded" {
		t.Errorf("unexpected span status %s %q", child.Status, child.Error)
	}
	if n := bytes.Count(buf.Bytes(), []byte("span finished")); n != 1 {
		t.Errorf("expected one span record, got %d", n)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"tag.rows":"4"`)) {
		t.Errorf("span tags should be logged, got %s", buf.String())
	}
}
