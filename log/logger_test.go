package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_IncludesRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("run-123", &buf)

	logger.Info("fetch settled", map[string]any{"channel": "green"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", entry["run_id"])
	}
	if entry["tool"] != "stainfetch" {
		t.Errorf("tool = %v, want stainfetch", entry["tool"])
	}
	if entry["message"] != "fetch settled" {
		t.Errorf("message = %v, want %q", entry["message"], "fetch settled")
	}
}

func TestSugaredLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("run-456", &buf)

	logger.Sugar().Infof("downloaded %d of %d", 3, 8)

	if !strings.Contains(buf.String(), "downloaded 3 of 8") {
		t.Errorf("sugared output missing formatted message: %s", buf.String())
	}
}
