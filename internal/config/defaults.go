package config

const (
	defaultLogDir             = "~/.local/share/ferry/logs"
	defaultBatchIDColumn      = "Batch ID"
	defaultMaxCopyRetries     = 3
	defaultRetryBackoffBaseMs = 500
	defaultWorkerPoolSize     = 4
	defaultCopyTimeoutMs      = 300_000
	defaultMinFreeSpaceGiB    = 1
	defaultNotifyTimeout      = 10
	defaultVPNMaxAttempts     = 3
	defaultVPNRetryDelay      = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Filter: Filter{
			BatchIDColumn: defaultBatchIDColumn,
		},
		Transfer: Transfer{
			MaxCopyRetries:     defaultMaxCopyRetries,
			RetryBackoffBaseMs: defaultRetryBackoffBaseMs,
			WorkerPoolSize:     defaultWorkerPoolSize,
			CopyTimeoutMs:      defaultCopyTimeoutMs,
			MinFreeSpaceGiB:    defaultMinFreeSpaceGiB,
		},
		Schedule: Schedule{
			DailyAt: []string{"07:30"},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Runs:           true,
			Errors:         true,
		},
		VPN: VPN{
			MaxAttempts:       defaultVPNMaxAttempts,
			RetryDelaySeconds: defaultVPNRetryDelay,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
