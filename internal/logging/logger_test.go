package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"docbridge/internal/logging"
)

func TestConsoleFormatIncludesComponentAndAttrs(t *testing.T) {
	var console bytes.Buffer
	logger, err := logging.NewWithWriters(&console, nil, logging.Options{Level: "info", Format: "console"})
	if err != nil {
		t.Fatalf("NewWithWriters failed: %v", err)
	}

	component := logging.NewComponentLogger(logger, "discovery")
	component.Info("scan complete", logging.Int("inserted", 3), logging.String(logging.FieldPath, "/srv/erp"))

	line := console.String()
	if !strings.Contains(line, "INFO discovery: scan complete") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "inserted=3") {
		t.Fatalf("expected inserted attr in %q", line)
	}
	if !strings.Contains(line, "path=/srv/erp") {
		t.Fatalf("expected path attr in %q", line)
	}
}

func TestFileFanoutWritesJSON(t *testing.T) {
	var console, file bytes.Buffer
	logger, err := logging.NewWithWriters(&console, &file, logging.Options{Level: "info", Format: "console"})
	if err != nil {
		t.Fatalf("NewWithWriters failed: %v", err)
	}

	logger.Warn("upload slow", logging.Int64(logging.FieldDocID, 42))

	if !strings.Contains(console.String(), "WARN") {
		t.Fatalf("expected console output, got %q", console.String())
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
	}
	if record["msg"] != "upload slow" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "warn" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts key in JSON record")
	}
	if record["doc_id"] != float64(42) {
		t.Fatalf("unexpected doc_id: %v", record["doc_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	logger, err := logging.NewWithWriters(&console, nil, logging.Options{Level: "warn", Format: "console"})
	if err != nil {
		t.Fatalf("NewWithWriters failed: %v", err)
	}

	logger.Info("hidden")
	logger.Error("visible", logging.Error(nil))

	out := console.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("error record missing: %q", out)
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	var console bytes.Buffer
	if _, err := logging.NewWithWriters(&console, nil, logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
