package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	if l == nil {
		t.Fatal("NewLogger returned nil")
	}
	l.Info("ready")
	if !strings.Contains(buf.String(), "ready") {
		t.Errorf("output missing message: %s", buf.String())
	}
}

func TestNewLogger_NilWriter(t *testing.T) {
	l := NewLogger(nil)
	if l == nil {
		t.Fatal("NewLogger with nil writer returned nil")
	}
	l.Info("test message")
}

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Info("hello world", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello world") {
		t.Errorf("output missing message: %s", output)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(output), &m); err != nil {
		t.Errorf("invalid JSON: %v", err)
	}
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Debug("debug msg")

	if !strings.Contains(buf.String(), "debug msg") {
		t.Error("debug message not found")
	}
}

func TestLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Warn("warning msg")

	if !strings.Contains(buf.String(), "warning msg") {
		t.Error("warn message not found")
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Error("error msg", "code", 500)

	output := buf.String()
	if !strings.Contains(output, "error msg") {
		t.Error("error message not found")
	}
	if !strings.Contains(output, "ERROR") {
		t.Error("expected ERROR level")
	}
}

func TestLogger_Child(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	child := l.Child(map[string]any{"module": "scheduler"})

	child.Info("tick")

	output := buf.String()
	if !strings.Contains(output, `"module":"scheduler"`) {
		t.Errorf("child binding not found: %s", output)
	}
	if !strings.Contains(output, "tick") {
		t.Errorf("message not found: %s", output)
	}
}

func TestLogger_ChildMergesAcrossGenerations(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	grandchild := l.Child(map[string]any{"module": "scheduler"}).Child(map[string]any{"schedule_id": "daily-report"})

	grandchild.Warn("skipped")

	output := buf.String()
	if !strings.Contains(output, `"module":"scheduler"`) {
		t.Errorf("grandparent binding lost: %s", output)
	}
	if !strings.Contains(output, `"schedule_id":"daily-report"`) {
		t.Errorf("parent binding lost: %s", output)
	}
}

func TestLogger_ChildDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	_ = l.Child(map[string]any{"module": "scheduler"})

	buf.Reset()
	l.Info("parent message")

	if strings.Contains(buf.String(), "scheduler") {
		t.Errorf("parent logger picked up child binding: %s", buf.String())
	}
}
