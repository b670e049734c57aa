package main

import (
	"log/slog"
	"strings"
	"sync"

	"ferry/internal/config"
	"ferry/internal/ledger"
	"ferry/internal/logging"
)

// commandContext lazily loads configuration so commands that never need it
// (config init) stay usable on a fresh machine.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openLedger() (*config.Config, *ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewForRun(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
}
