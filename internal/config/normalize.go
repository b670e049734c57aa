package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFilter()
	c.normalizeTransfer()
	c.normalizeNotifications()
	c.normalizeVPN()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceRoot != "" {
		if c.Paths.SourceRoot, err = expandPath(c.Paths.SourceRoot); err != nil {
			return fmt.Errorf("paths.source_root: %w", err)
		}
	}
	if c.Paths.DestinationRoot != "" {
		if c.Paths.DestinationRoot, err = expandPath(c.Paths.DestinationRoot); err != nil {
			return fmt.Errorf("paths.destination_root: %w", err)
		}
	}
	if c.Paths.Spreadsheet != "" {
		if c.Paths.Spreadsheet, err = expandPath(c.Paths.Spreadsheet); err != nil {
			return fmt.Errorf("paths.spreadsheet: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFilter() {
	c.Filter.MatchColumn = strings.TrimSpace(c.Filter.MatchColumn)
	c.Filter.MatchValue = strings.TrimSpace(c.Filter.MatchValue)
	c.Filter.EmptyColumn = strings.TrimSpace(c.Filter.EmptyColumn)
	c.Filter.BatchIDColumn = strings.TrimSpace(c.Filter.BatchIDColumn)
	if c.Filter.BatchIDColumn == "" {
		c.Filter.BatchIDColumn = defaultBatchIDColumn
	}
	c.Filter.Sheet = strings.TrimSpace(c.Filter.Sheet)
}

func (c *Config) normalizeTransfer() {
	if c.Transfer.MaxCopyRetries <= 0 {
		c.Transfer.MaxCopyRetries = defaultMaxCopyRetries
	}
	if c.Transfer.RetryBackoffBaseMs <= 0 {
		c.Transfer.RetryBackoffBaseMs = defaultRetryBackoffBaseMs
	}
	if c.Transfer.WorkerPoolSize <= 0 {
		c.Transfer.WorkerPoolSize = defaultWorkerPoolSize
	}
	if c.Transfer.CopyTimeoutMs <= 0 {
		c.Transfer.CopyTimeoutMs = defaultCopyTimeoutMs
	}
	if c.Transfer.MinFreeSpaceGiB < 0 {
		c.Transfer.MinFreeSpaceGiB = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(os.Getenv("FERRY_NTFY_TOPIC"))
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeVPN() {
	c.VPN.ConnectionName = strings.TrimSpace(c.VPN.ConnectionName)
	if c.VPN.MaxAttempts <= 0 {
		c.VPN.MaxAttempts = defaultVPNMaxAttempts
	}
	if c.VPN.RetryDelaySeconds <= 0 {
		c.VPN.RetryDelaySeconds = defaultVPNRetryDelay
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
