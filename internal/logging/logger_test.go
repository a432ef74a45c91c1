package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestConsoleLogger(buf *bytes.Buffer) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(buf, lvl, false))
}

func TestConsoleHandlerLiftsComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestConsoleLogger(&buf), "fetcher")

	logger.Info("download complete", String(FieldItemID, "post-1"), Int("bytes", 2048))

	line := buf.String()
	if !strings.Contains(line, " INFO fetcher: download complete") {
		t.Fatalf("component should prefix the message, got %q", line)
	}
	if !strings.Contains(line, "item_id=post-1") || !strings.Contains(line, "bytes=2048") {
		t.Fatalf("attrs missing from line %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component must not repeat in the key/value tail: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf)

	logger.Warn("retrying", String("reason", "connection refused"))

	if !strings.Contains(buf.String(), `reason="connection refused"`) {
		t.Fatalf("value with spaces should be quoted, got %q", buf.String())
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf)

	logger.Info("usage", Group("tokens", Int("prompt", 12), Int("completion", 4)))

	line := buf.String()
	if !strings.Contains(line, "tokens.prompt=12") || !strings.Contains(line, "tokens.completion=4") {
		t.Fatalf("group keys should flatten with dots, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("hidden")
	logger.Error("visible", Error(context.DeadlineExceeded))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "error=") {
		t.Fatalf("error line missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("unknown format should error")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestConsoleHandlerStampsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsoleLogger(&buf)

	logger.Info("tick")

	year := time.Now().UTC().Format("2006")
	if !strings.HasPrefix(buf.String(), year) {
		t.Fatalf("line should start with an RFC3339 timestamp, got %q", buf.String())
	}
}
