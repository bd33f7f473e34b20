package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "kinflick-test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return line
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = SetUserID(ctx, "user-1")

	CtxInfo(ctx, "hello %s", "world")

	line := decodeLine(t, &buf)
	if line["message"] != "hello world" {
		t.Errorf("unexpected message %v", line["message"])
	}
	if line[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id, got %v", line[FieldRequestID])
	}
	if line[FieldUserID] != "user-1" {
		t.Errorf("expected user_id, got %v", line[FieldUserID])
	}
	if line["service"] != "kinflick-test" {
		t.Errorf("expected service field, got %v", line["service"])
	}

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID = %q", got)
	}
	if got := GetUserID(ctx); got != "user-1" {
		t.Errorf("GetUserID = %q", got)
	}
}

func TestEntryMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldCount: 3}).WithDuration(42).WithStatus("done").Info(ctx, "batch finished")

	line := decodeLine(t, &buf)
	if line[FieldCount] != float64(3) {
		t.Errorf("expected count 3, got %v", line[FieldCount])
	}
	if line[FieldDurationMs] != float64(42) {
		t.Errorf("expected duration 42, got %v", line[FieldDurationMs])
	}
	if line[FieldStatus] != "done" {
		t.Errorf("expected status done, got %v", line[FieldStatus])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("expected default logger for bare context")
	}
}
