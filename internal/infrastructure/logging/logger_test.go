package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
)

type deployState string
type lockState string

// capture returns a logger writing JSON entries to buf.
func capture(t *testing.T, level, runtimeID string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := config.LoggingConfig{Level: level, Format: "json"}
	return newWithWriter(cfg, &buf, "1.2.0", runtimeID), &buf
}

// lastEntry decodes the final JSON line written to buf.
func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew_DefaultFields(t *testing.T) {
	log, buf := capture(t, "info", "acm-runtime-001")
	log.Info("runtime started")

	entry := lastEntry(t, buf)
	if entry[KeyService] != ServiceName {
		t.Errorf("service = %v, want %s", entry[KeyService], ServiceName)
	}
	if entry[KeyVersion] != "1.2.0" {
		t.Errorf("version = %v, want 1.2.0", entry[KeyVersion])
	}
	if entry[KeyRuntimeID] != "acm-runtime-001" {
		t.Errorf("runtime_id = %v, want acm-runtime-001", entry[KeyRuntimeID])
	}
}

func TestNew_OmitsEmptyRuntimeID(t *testing.T) {
	log, buf := capture(t, "info", "")
	log.Info("runtime started")

	if _, ok := lastEntry(t, buf)[KeyRuntimeID]; ok {
		t.Error("runtime_id present without a runtime id")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.LoggingConfig{Level: "debug", Format: "TEXT"}, &buf, "1.2.0", "r1")
	log.Debug("scan finished", InstanceID("ac-1"))

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "instance_id=ac-1", "runtime_id=r1"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("text output %q missing %q", out, want)
		}
	}
}

func TestNew_LevelFilters(t *testing.T) {
	log, buf := capture(t, "warn", "")
	log.Info("heartbeat received")
	if buf.Len() != 0 {
		t.Fatalf("info entry written at warn level: %s", buf.String())
	}
	log.Warn("status report dropped")
	if lastEntry(t, buf)["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", lastEntry(t, buf)["level"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// ─── Component Loggers ─────────────────────────────────────────────

func TestLogger_ComponentTagsEntries(t *testing.T) {
	log, buf := capture(t, "info", "r1")
	dispatchLog := log.Component("dispatch")
	if dispatchLog == log {
		t.Fatal("Component returned the parent logger")
	}

	dispatchLog.Warn("partition timed out", InstanceID("ac-1"), Order("DEPLOY"))

	entry := lastEntry(t, buf)
	if entry[KeyComponent] != "dispatch" {
		t.Errorf("component = %v, want dispatch", entry[KeyComponent])
	}
	if entry[KeyRuntimeID] != "r1" {
		t.Errorf("runtime_id = %v, want r1", entry[KeyRuntimeID])
	}
	if entry[KeyOrder] != "DEPLOY" {
		t.Errorf("order = %v, want DEPLOY", entry[KeyOrder])
	}

	log.Info("unrelated")
	if _, ok := lastEntry(t, buf)[KeyComponent]; ok {
		t.Error("parent logger picked up the component field")
	}
}

func TestFieldHelpers(t *testing.T) {
	log, buf := capture(t, "info", "")
	log.Error("status report not applied",
		InstanceID("ac-1"),
		CompositionID("def-1"),
		ElementID("e-http"),
		ParticipantID("p-http"),
		States(deployState("DEPLOYING"), lockState("NONE")),
		Err(errors.New("database is locked")),
	)

	entry := lastEntry(t, buf)
	want := map[string]string{
		KeyInstanceID:    "ac-1",
		KeyCompositionID: "def-1",
		KeyElementID:     "e-http",
		KeyParticipantID: "p-http",
		KeyError:         "database is locked",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %s", k, entry[k], v)
		}
	}

	state, ok := entry[KeyState].(map[string]any)
	if !ok {
		t.Fatalf("state = %v, want a group", entry[KeyState])
	}
	if state["deploy"] != "DEPLOYING" || state["lock"] != "NONE" {
		t.Errorf("state = %v, want deploy=DEPLOYING lock=NONE", state)
	}
}

func TestErr_Nil(t *testing.T) {
	if got := Err(nil); got.Key != KeyError || got.Value.Any() != nil {
		t.Errorf("Err(nil) = %v, want error=<nil>", got)
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("expected non-nil default logger")
	}
}
