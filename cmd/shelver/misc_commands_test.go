package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"

	"shelver/internal/sidecar"
	"shelver/internal/testsupport"
)

func TestProbeCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	pdf := writeInbox(t, env, "mystery.bin", axlerPDF())
	empty := writeInbox(t, env, "empty", nil)

	out, _, err := runCLI(t, []string{"probe", "--json", pdf, empty}, env.configPath)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	var views []probeView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode probe output: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 results, got %+v", views)
	}
	if views[0].Format != "pdf" || views[0].Extension != "pdf" || views[0].Classifier != "pdf" || len(views[0].Signature) != 24 {
		t.Fatalf("unexpected pdf probe %+v", views[0])
	}
	if views[1].Format != "unknown" || views[1].Error == "" {
		t.Fatalf("unexpected empty-file probe %+v", views[1])
	}
}

func TestSidecarCommandUsesJournal(t *testing.T) {
	env := setupCLITestEnv(t)
	writeInbox(t, env, "scan0001.pdf", axlerPDF())
	if _, _, err := runCLI(t, []string{"rename", env.inbox}, env.configPath); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	outDir := filepath.Join(testsupport.BaseDir(env.cfg), "sidecars")
	out, _, err := runCLI(t, []string{"sidecar", "-i", env.cfg.Paths.OutputDir, "-o", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("sidecar failed: %v", err)
	}
	requireContains(t, out, "Generated 1 sidecar JSON files.")

	data, err := os.ReadFile(filepath.Join(outDir, "Linear Algebra Done Right - Sheldon Axler.pdf.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var entry sidecar.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode sidecar: %v", err)
	}
	if entry.OriginalFilename != "scan0001.pdf" {
		t.Fatalf("original filename = %q", entry.OriginalFilename)
	}
	if entry.Title != "Linear Algebra Done Right" || entry.Author != "Sheldon Axler" {
		t.Fatalf("title/author = %q/%q", entry.Title, entry.Author)
	}
	if entry.MetadataSource != "metadata" {
		t.Fatalf("metadata source = %q", entry.MetadataSource)
	}
}

func TestSidecarCommandRequiresInput(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"sidecar"}, env.configPath); err == nil {
		t.Fatal("expected missing --input-dir error")
	}
	out, _, err := runCLI(t, []string{"sidecar", "-i", env.inbox}, env.configPath)
	if err != nil {
		t.Fatalf("sidecar on empty dir failed: %v", err)
	}
	requireContains(t, out, "No files found matching provided extensions.")
}

func TestPreflightCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight failed: %v\n%s", err, out)
	}
	requireContains(t, out, "ebook-convert")
	requireContains(t, out, "All required checks passed")

	env.cfg.Tools.EbookConvert = filepath.Join(testsupport.BaseDir(env.cfg), "bin", "missing")
	path := testsupport.WriteConfig(t, env.cfg)
	out, _, err = runCLI(t, []string{"preflight"}, path)
	if err == nil || !strings.Contains(err.Error(), "required checks failed") {
		t.Fatalf("expected blocking failure, got %v\n%s", err, out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENROUTER_API_KEY", "key")

	out, _, err := runCLI(t, []string{"config", "init"}, "")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	target := filepath.Join(home, ".config", "shelver", "config.toml")
	requireContains(t, out, target)
	requireExists(t, target)

	if _, _, err := runCLI(t, []string{"config", "init"}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite failed: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(testsupport.BaseDir(env.cfg), "bad.toml")
	if err := os.WriteFile(bad, []byte("[pipeline]\nworkers = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestProbeCommandTable(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeInbox(t, env, "notes", []byte("plain words on a page\n"))

	out, _, err := runCLI(t, []string{"probe", path}, env.configPath)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	requireContains(t, out, "txt")
	requireContains(t, out, "Probe order: pdf, epub, mobi, chm, text, mime")
}

func TestConfigShowRedactsAPIKey(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.LLM.APIKey = "sk-secret"
	configPath := testsupport.WriteConfig(t, env.cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, configPath)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "<redacted>")
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked:\n%s", out)
	}
}
