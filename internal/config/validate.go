package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceRoot) == "" {
		return errors.New("paths.source_root must be set (create a config with 'ferry config init')")
	}
	if strings.TrimSpace(c.Paths.DestinationRoot) == "" {
		return errors.New("paths.destination_root must be set")
	}
	if strings.TrimSpace(c.Paths.Spreadsheet) == "" {
		return errors.New("paths.spreadsheet must be set")
	}
	return nil
}

func (c *Config) validateFilter() error {
	if c.Filter.MatchColumn == "" {
		return errors.New("filter.match_column must be set")
	}
	if c.Filter.MatchValue == "" {
		return errors.New("filter.match_value must be set")
	}
	if c.Filter.EmptyColumn == "" {
		return errors.New("filter.empty_column must be set")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	for _, at := range c.Schedule.DailyAt {
		if _, err := time.Parse("15:04", strings.TrimSpace(at)); err != nil {
			return fmt.Errorf("schedule.daily_at: %q is not a valid HH:MM time", at)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
