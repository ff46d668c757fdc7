package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type ctxKey struct{}

func traceFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "repairtrack", traceFromCtx)

	ctx := context.WithValue(context.Background(), ctxKey{}, "4bf92f3577b34da6a3ce929d0e0e4736")
	log.Info(ctx, "quote decided", "action", "approve")
	log.Debug(ctx, "dropped")
	if err := log.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	for k, want := range map[string]string{
		"level":    "info",
		"msg":      "quote decided",
		"service":  "repairtrack",
		"action":   "approve",
		"trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
	} {
		if entry[k] != want {
			t.Fatalf("expected %s=%q, got %v", k, want, entry[k])
		}
	}
}

func TestLoggerOmitsEmptyTraceID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core), traceFromCtx)

	log.Warn(context.Background(), "backend slow", "took_ms", 1200)
	log.With("component", "api").Error(context.Background(), "lookup failed")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
	first := logs.All()[0]
	if _, ok := first.ContextMap()["trace_id"]; ok {
		t.Fatal("trace_id must be omitted when the context has none")
	}
	if first.ContextMap()["took_ms"] != int64(1200) {
		t.Fatalf("unexpected took_ms %v", first.ContextMap()["took_ms"])
	}
	if logs.All()[1].ContextMap()["component"] != "api" {
		t.Fatalf("expected component=api, got %v", logs.All()[1].ContextMap())
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("ERROR")
	if err != nil || lvl != LevelError {
		t.Fatalf("expected error level, got %v (err=%v)", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
