package observability

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "json", &buf)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "engine").Msg("visible")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log output is not a single JSON line: %q", buf.String())
	}
	if line["message"] != "visible" || line["component"] != "engine" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, err := NewLogger("loud", "json", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	if _, err := NewLogger("info", "xml", &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}
