package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"playlist-cards-go/internal/config"
	"playlist-cards-go/internal/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			c.configErr = fmt.Errorf("create data directory: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func newLogger(cfg config.Config) *logger.Logger {
	opts := logger.Options{
		Environment: cfg.Logging.Environment,
		Level:       cfg.Logging.Level,
	}
	if cfg.Logging.ToFile {
		opts.FilePath = cfg.LogFile()
	}
	return logger.New(opts)
}
