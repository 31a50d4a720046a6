package strata

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerWritesStructuredAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	catalog := newTestCatalog(t, WithLogger(NewSlogLogger(logger)))
	osm := mustAdd(t, catalog, "osm", testTypeBaseMap)
	mustSet(t, osm, LayerUserEdit, "opacity", "half")
	mustResolve(t, osm, "opacity")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single warning line, got %q", buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["level"] != "WARN" || record["msg"] != "property resolved to default" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["entity"] != "osm" || record["property"] != "opacity" || record["layer"] != LayerUserEdit {
		t.Fatalf("missing context attrs in %v", record)
	}
}

func TestLoggerFuncAndNoop(t *testing.T) {
	var got []LogEvent
	LoggerFunc(func(event LogEvent) { got = append(got, event) }).Log(LogEvent{Message: "hello"})
	if len(got) != 1 || got[0].Message != "hello" {
		t.Fatalf("unexpected events %v", got)
	}
	var nilFunc LoggerFunc
	nilFunc.Log(LogEvent{})
	NewSlogLogger(nil).Log(LogEvent{Message: "dropped"})

	if LogLevelWarn.String() != "warn" || LogLevel(42).String() != "unknown" {
		t.Fatalf("unexpected level names")
	}
}
