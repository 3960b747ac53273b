package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFields(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFields() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be set", key)
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %v)", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", key)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", key)
	default:
		return fmt.Sprintf("%s failed %q validation", key, fe.Tag())
	}
}

func (c *Config) validatePaths() error {
	seen := make(map[string]string)
	named := []struct {
		key  string
		path string
	}{
		{"paths.output_dir", c.Paths.OutputDir},
		{"paths.failed_dir", c.Paths.FailedDir},
		{"paths.quarantine_dir", c.Paths.QuarantineDir},
		{"paths.duplicates_dir", c.Paths.DuplicatesDir},
	}
	for _, entry := range named {
		clean := filepath.Clean(entry.path)
		if other, ok := seen[clean]; ok {
			return fmt.Errorf("%s and %s must be different directories", other, entry.key)
		}
		seen[clean] = entry.key
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.UsesSource("llm") {
		return nil
	}
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shelver/config.toml"
		}
		return fmt.Errorf("llm.api_key is required when naming.sources includes \"llm\". Set %s env var or edit %s (create with 'shelver config init')", envOpenRouterAPIKey, defaultPath)
	}
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
