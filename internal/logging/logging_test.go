package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "error", "off", ""} {
		if _, _, err := ParseLevel(name); err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
	}
	if _, _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, ok, _ := ParseLevel("off"); ok {
		t.Fatalf("off must disable logging")
	}
}

func TestNewWritesJSONWithServiceName(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("visible", "pid", "42")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "visible" || rec["pid"] != "42" || rec["service.name"] != ServiceName {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewLogsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attach.log")
	logger, closer, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte(`"msg":"to file"`)) {
		t.Fatalf("unexpected log file content %q", data)
	}
}

func TestOffDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "off", Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Error("nothing")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
