package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"letterpod/internal/app"
	"letterpod/internal/config"
	"letterpod/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	c.configOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configPath, c.configErr = app.LoadConfig(ctx, path)
	})
	return c.config, c.configErr
}

// logger builds the process logger from the [logging] section.
func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromSettings(logging.Settings{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Dir:    cfg.Logging.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
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
