package testsupport

import (
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceRoot = filepath.Join(base, "source")
	cfg.Paths.DestinationRoot = filepath.Join(base, "destination")
	cfg.Paths.Spreadsheet = filepath.Join(base, "status.xlsx")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Filter.MatchColumn = "AJ"
	cfg.Filter.MatchValue = "PP"
	cfg.Filter.EmptyColumn = "AK"
	cfg.Transfer.RetryBackoffBaseMs = 1
	cfg.Transfer.CopyTimeoutMs = 5_000

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkerPoolSize overrides the transfer worker pool bound.
func WithWorkerPoolSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Transfer.WorkerPoolSize = size
	}
}

// WithVerifyChecksum enables checksum verification on the test config.
func WithVerifyChecksum() ConfigOption {
	return func(c *config.Config) {
		c.Transfer.VerifyChecksum = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceRoot)
}
