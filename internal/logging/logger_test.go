package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/services"
)

func TestNewFromConfigWritesRotatedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg, io.Discard)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message", logging.String("key", "value"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "shelver.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log file should hold JSON lines: %v (%q)", err, data)
	}
	if entry["msg"] != "file message" || entry["key"] != "value" {
		t.Fatalf("unexpected file entry %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", entry["level"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithStage(services.WithFile(context.Background(), "/in/report.pdf"), "naming")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).
		Info("name accepted", logging.String("name", "Annual Report"))

	out := buf.String()
	for _, want := range []string{"INFO [pipeline] naming · report.pdf - name accepted", "    - name: \"Annual Report\""} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "- file:") {
		t.Fatalf("subject keys should not repeat as fields at info level:\n%s", out)
	}
}

func TestConsoleLoggerShowsWorkerInHeader(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithWorker(context.Background(), 3)
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).Info("file renamed")

	out := buf.String()
	if !strings.Contains(out, "[pipeline#3]") {
		t.Fatalf("expected worker tag in header:\n%s", out)
	}
	if strings.Contains(out, "- worker:") {
		t.Fatalf("worker should not repeat as a field at info level:\n%s", out)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithWorker(ctx, 2)
	logging.WithContext(ctx, logger).Error("boom", logging.Error(errors.New("bad thing")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldRunID] != "run-1" {
		t.Fatalf("missing run id: %v", entry)
	}
	if entry[logging.FieldWorker] != float64(2) {
		t.Fatalf("missing worker: %v", entry)
	}
	if entry["error"] != "bad thing" {
		t.Fatalf("expected error string, got %v", entry["error"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "probe timed out", "probe_timeout")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected %s in %v", key, entry)
		}
	}
}

func TestNewFromConfigFansOutToConsoleAndFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	var console bytes.Buffer
	logger, err := logging.NewFromConfig(&cfg, &console)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.With(logging.String("run", "r1")).Warn("moved aside", logging.Path("destination", "/lib/My Report.pdf"))
	logger.Debug("hidden")

	if !strings.Contains(console.String(), "moved aside") {
		t.Fatalf("console missing record: %q", console.String())
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "shelver.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Fatalf("expected one record in file, got %q", data)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["destination"] != "/lib/My Report.pdf" || entry["run"] != "r1" {
		t.Fatalf("unexpected file entry %v", entry)
	}
}

func TestPathAttrMarksEmpty(t *testing.T) {
	if got := logging.Path("destination", "").Value.String(); got != "<none>" {
		t.Fatalf("expected <none>, got %q", got)
	}
}

func TestPruneOldFilesRemovesExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "run-old.jsonl")
	fresh := filepath.Join(dir, "run-new.jsonl")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := logging.PruneOldFiles(logging.NewNop(), dir, "run-*.jsonl", 7); removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old run log removed, stat err=%v", err)
	}
	for _, path := range []string{fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}
