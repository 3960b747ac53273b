package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envLLMAPIKey        = "SHELVER_LLM_API_KEY"
	envOpenRouterAPIKey = "OPENROUTER_API_KEY"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNaming()
	c.normalizeProbe()
	c.normalizeTranscode()
	c.normalizeDiscovery()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.failed_dir", &c.Paths.FailedDir},
		{"paths.quarantine_dir", &c.Paths.QuarantineDir},
		{"paths.duplicates_dir", &c.Paths.DuplicatesDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.scratch_dir", &c.Paths.ScratchDir},
		{"paths.state_dir", &c.Paths.StateDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	if c.Paths.ScratchDir == "" {
		c.Paths.ScratchDir = filepath.Join(os.TempDir(), "shelver")
	}
	return nil
}

func (c *Config) normalizeNaming() {
	c.Naming.Sources = lowerAll(c.Naming.Sources)
	prefixes := c.Naming.BoilerplatePrefixes[:0]
	for _, p := range c.Naming.BoilerplatePrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	c.Naming.BoilerplatePrefixes = prefixes
}

func (c *Config) normalizeProbe() {
	c.Probe.Order = lowerAll(c.Probe.Order)
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Formats = lowerAll(c.Transcode.Formats)
	c.Transcode.Target = strings.ToLower(strings.TrimSpace(c.Transcode.Target))
}

func (c *Config) normalizeDiscovery() {
	exts := make([]string, 0, len(c.Discovery.Extensions))
	for _, ext := range c.Discovery.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	c.Discovery.Extensions = exts
}

func (c *Config) normalizeLLM() {
	for _, key := range []string{envLLMAPIKey, envOpenRouterAPIKey} {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			c.LLM.APIKey = strings.TrimSpace(value)
			break
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = "console"
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = "info"
	}
	c.Logging.Level = level
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
