package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/runlog"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

// ensureConfig loads and validates the configuration once. Directories are
// created by the commands that write, so dry runs leave the disk untouched.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil {
			if level := strings.TrimSpace(*c.levelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

// logger builds the command logger. persist adds the rotated JSON log file
// under paths.log_dir and prunes run journals past logging.max_age_days.
func (c *commandContext) logger(cmd *cobra.Command, persist bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	console := cmd.ErrOrStderr()
	if !persist {
		return logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Console: console,
		})
	}
	logger, err := logging.NewFromConfig(cfg, console)
	if err != nil {
		return nil, err
	}
	logging.PruneOldFiles(logger, cfg.Paths.LogDir, runlog.FilePrefix+"*"+runlog.FileSuffix, cfg.Logging.MaxAgeDays)
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
