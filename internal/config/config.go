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

// Paths contains directory configuration.
type Paths struct {
	SourceRoot      string `toml:"source_root"`
	DestinationRoot string `toml:"destination_root"`
	Spreadsheet     string `toml:"spreadsheet"`
	LogDir          string `toml:"log_dir"`
}

// Filter contains the spreadsheet filter criteria.
type Filter struct {
	MatchColumn   string `toml:"match_column"`
	MatchValue    string `toml:"match_value"`
	EmptyColumn   string `toml:"empty_column"`
	BatchIDColumn string `toml:"batch_id_column"`
	Sheet         string `toml:"sheet"`
}

// Transfer contains copy, retry, and verification settings.
type Transfer struct {
	MaxCopyRetries     int  `toml:"max_copy_retries"`
	RetryBackoffBaseMs int  `toml:"retry_backoff_base_ms"`
	WorkerPoolSize     int  `toml:"worker_pool_size"`
	CopyTimeoutMs      int  `toml:"copy_timeout_ms"`
	VerifyChecksum     bool `toml:"verify_checksum"`
	MinFreeSpaceGiB    int  `toml:"min_free_space_gib"`
}

// Schedule contains daemon run-time configuration.
type Schedule struct {
	DailyAt []string `toml:"daily_at"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Runs           bool   `toml:"runs"`
	Errors         bool   `toml:"errors"`
}

// VPN contains configuration for the connectivity check that precedes a run.
type VPN struct {
	ConnectionName    string `toml:"connection_name"`
	StatusCommand     string `toml:"status_command"`
	DialCommand       string `toml:"dial_command"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Ferry.
//
// Configuration sections by subsystem:
//   - Paths: source and destination roots, spreadsheet location, log directory
//   - Filter: which spreadsheet rows qualify a batch for transfer
//   - Transfer: retry, backoff, timeout, worker pool, verification settings
//   - Schedule: daily run times for the daemon
//   - Notifications: ntfy push notification settings
//   - VPN: connectivity commands executed before a run
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Filter        Filter        `toml:"filter"`
	Transfer      Transfer      `toml:"transfer"`
	Schedule      Schedule      `toml:"schedule"`
	Notifications Notifications `toml:"notifications"`
	VPN           VPN           `toml:"vpn"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ferry/config.toml")
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath expands a leading tilde and returns the absolute form of path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found at the resolved path.
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

	projectPath, err := filepath.Abs("ferry.toml")
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

// EnsureDirectories creates the directories a run needs. The destination root
// is created on a best-effort basis so config loading succeeds while external
// storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if strings.TrimSpace(c.Paths.DestinationRoot) != "" {
		_ = os.MkdirAll(c.Paths.DestinationRoot, 0o755)
	}
	return nil
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
