package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shelver/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Name sources default to embedded metadata and filename inference so tests
// never reach the network unless WithLLM is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "renamed")
	cfgVal.Paths.FailedDir = filepath.Join(base, "failed")
	cfgVal.Paths.QuarantineDir = filepath.Join(base, "unresolved")
	cfgVal.Paths.DuplicatesDir = filepath.Join(base, "duplicates")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Naming.Sources = []string{"metadata", "filename"}
	cfgVal.Probe.TimeoutSeconds = 5
	cfgVal.Tools.PDFToText = filepath.Join(base, "bin", "no-pdftotext")
	cfgVal.Tools.EbookConvert = filepath.Join(base, "bin", "no-ebook-convert")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLM enables the language-model name source against the given endpoint.
func WithLLM(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = "test"
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.Model = "test-model"
		b.cfg.LLM.RetryAttempts = 1
		b.cfg.Naming.Sources = []string{"metadata", "llm"}
	}
}

// WithSources overrides the configured name sources.
func WithSources(sources ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Naming.Sources = sources
	}
}

// WithStubbedBinary writes an executable shell script named name under the
// config's bin directory and points the matching tools entry at it. Unknown
// names are only written.
func WithStubbedBinary(name, script string) ConfigOption {
	return func(b *configBuilder) {
		target := WriteScript(b.t, filepath.Join(b.baseDir, "bin"), name, script)
		switch name {
		case "pdftotext":
			b.cfg.Tools.PDFToText = target
		case "ebook-convert":
			b.cfg.Tools.EbookConvert = target
		}
	}
}

// WriteScript writes an executable /bin/sh script and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	if !strings.HasPrefix(body, "#!") {
		body = "#!/bin/sh\n" + body
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

// InboxDir creates and returns an input directory inside the config's base dir.
func InboxDir(t testing.TB, cfg *config.Config) string {
	t.Helper()
	dir := filepath.Join(BaseDir(cfg), "inbox")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}
	return dir
}

// WriteConfig marshals cfg to config.toml in its base dir and returns the path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	target := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return target
}
