// Package testsupport builds throwaway configs and stores for tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shelfward/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Retries are instant and notifications are off so tests stay fast and
// hermetic.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Library.Roots = []string{filepath.Join(base, "library")}
	cfg.Download.RetryDelaySeconds = 0
	cfg.Dedup.Enabled = false
	cfg.Notifications.NtfyTopic = ""
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Library.Roots[0]} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDedup enables duplicate detection at the given threshold.
func WithDedup(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dedup.Enabled = true
		cfg.Dedup.SimilarityThreshold = threshold
	}
}

// WithNamingPattern overrides the library naming pattern.
func WithNamingPattern(pattern string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Library.NamingPattern = pattern
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
