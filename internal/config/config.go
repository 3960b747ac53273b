package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories shelver reads from and files into.
type Paths struct {
	OutputDir     string `toml:"output_dir" default:"~/books/renamed" validate:"required"`
	FailedDir     string `toml:"failed_dir" default:"~/books/failed" validate:"required"`
	QuarantineDir string `toml:"quarantine_dir" default:"~/books/unresolved" validate:"required"`
	DuplicatesDir string `toml:"duplicates_dir" default:"~/books/duplicates" validate:"required"`
	LogDir        string `toml:"log_dir" default:"~/.local/share/shelver/logs" validate:"required"`
	ScratchDir    string `toml:"scratch_dir"`
	StateDir      string `toml:"state_dir" default:"~/.local/state/shelver" validate:"required"`
}

// Naming controls how candidate names are obtained and cleaned.
type Naming struct {
	// RetryAttempts bounds how many times the name sources are asked for an
	// acceptable name before the file is routed to the failed directory.
	RetryAttempts int `toml:"retry_attempts" default:"2" validate:"min=1,max=5"`
	// CharBudget caps the extracted text sent to the language model.
	CharBudget          int      `toml:"char_budget" default:"26000" validate:"min=256"`
	MaxNameLength       int      `toml:"max_name_length" default:"200" validate:"min=16,max=240"`
	PrefixSignature     bool     `toml:"prefix_signature"`
	BoilerplatePrefixes []string `toml:"boilerplate_prefixes" default:"[\"Filename:\",\"File name:\",\"New filename:\",\"Title:\",\"Name:\"]"`
	Sources             []string `toml:"sources" default:"[\"metadata\",\"llm\"]" validate:"min=1,dive,oneof=metadata llm filename"`
}

// Probe controls content-type resolution.
type Probe struct {
	Order           []string `toml:"order" default:"[\"pdf\",\"epub\",\"mobi\",\"chm\",\"text\",\"mime\"]" validate:"min=1,unique,dive,oneof=pdf epub mobi chm text mime"`
	TimeoutSeconds  int      `toml:"timeout_seconds" default:"30" validate:"min=1"`
	TextSampleBytes int      `toml:"text_sample_bytes" default:"65536" validate:"min=512"`
}

// Allocator bounds the disambiguation search.
type Allocator struct {
	MaxAttempts int `toml:"max_attempts" default:"10000" validate:"min=1"`
}

// Dedup controls the duplicate grouping pass.
type Dedup struct {
	PrefixLength int `toml:"prefix_length" default:"24" validate:"min=1"`
}

// Transcode controls forced conversion of container formats.
type Transcode struct {
	Enabled        bool     `toml:"enabled" default:"true"`
	Formats        []string `toml:"formats" default:"[\"mobi\",\"chm\"]" validate:"dive,oneof=mobi chm epub pdf txt"`
	Target         string   `toml:"target" default:"epub" validate:"oneof=epub pdf"`
	TimeoutSeconds int      `toml:"timeout_seconds" default:"300" validate:"min=1"`
}

// Discovery controls which files a rename run picks up.
type Discovery struct {
	Extensions []string `toml:"extensions" default:"[\"pdf\",\"epub\",\"mobi\",\"chm\",\"txt\"]"`
	Recursive  bool     `toml:"recursive"`
}

// Pipeline controls batch execution.
type Pipeline struct {
	Workers int `toml:"workers" default:"1" validate:"min=1,max=32"`
}

// LLM contains the chat-completion connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url" default:"https://openrouter.ai/api/v1/chat/completions" validate:"omitempty,url"`
	Model          string `toml:"model" default:"google/gemini-2.5-flash"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title" default:"shelver"`
	TimeoutSeconds int    `toml:"timeout_seconds" default:"60" validate:"min=1"`
	RetryAttempts  int    `toml:"retry_attempts" default:"3" validate:"min=1,max=10"`
}

// Tools names the external text-extraction and conversion binaries.
type Tools struct {
	PDFToText    string `toml:"pdftotext" default:"pdftotext" validate:"required"`
	EbookConvert string `toml:"ebook_convert" default:"ebook-convert" validate:"required"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format" default:"console" validate:"oneof=console json"`
	Level      string `toml:"level" default:"info"`
	MaxSizeMB  int    `toml:"max_size_mb" default:"20" validate:"min=1"`
	MaxBackups int    `toml:"max_backups" default:"5" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" default:"60" validate:"min=0"`
}

// Config encapsulates all configuration values for shelver.
//
// Configuration sections by subsystem:
//   - Paths: output, failed, quarantine, duplicates, log, scratch, and state directories
//   - Naming: retry bound, text budget, name cleanup, and name sources
//   - Probe: content-type probe ordering and time bounds
//   - Allocator: disambiguation search bound
//   - Dedup: signature prefix length for duplicate grouping
//   - Transcode: forced conversion of container formats
//   - Discovery: extension filter and recursion for rename runs
//   - Pipeline: worker count
//   - LLM: chat-completion connection settings
//   - Tools: external binaries
//   - Logging: log format, level, and rotation
type Config struct {
	Paths     Paths     `toml:"paths"`
	Naming    Naming    `toml:"naming"`
	Probe     Probe     `toml:"probe"`
	Allocator Allocator `toml:"allocator"`
	Dedup     Dedup     `toml:"dedup"`
	Transcode Transcode `toml:"transcode"`
	Discovery Discovery `toml:"discovery"`
	Pipeline  Pipeline  `toml:"pipeline"`
	LLM       LLM       `toml:"llm"`
	Tools     Tools     `toml:"tools"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelver/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into. Failure here is
// fatal for the run: a target directory that cannot be created is unusable.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputDir,
		c.Paths.FailedDir,
		c.Paths.QuarantineDir,
		c.Paths.DuplicatesDir,
		c.Paths.LogDir,
		c.LockDir(),
	}
	if c.Paths.ScratchDir != "" {
		dirs = append(dirs, c.Paths.ScratchDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir returns the directory holding per-target-directory lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// TargetDirs lists every directory the pipeline may file documents into.
func (c *Config) TargetDirs() []string {
	return []string{c.Paths.OutputDir, c.Paths.FailedDir, c.Paths.QuarantineDir, c.Paths.DuplicatesDir}
}

// UsesSource reports whether the named name source is enabled.
func (c *Config) UsesSource(name string) bool {
	for _, src := range c.Naming.Sources {
		if strings.EqualFold(src, name) {
			return true
		}
	}
	return false
}

// TranscodeFormat reports whether files of the given format must be converted.
func (c *Config) TranscodeFormat(format string) bool {
	if !c.Transcode.Enabled {
		return false
	}
	for _, f := range c.Transcode.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved chat-completion settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		RetryAttempts:  c.LLM.RetryAttempts,
	}
}
