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
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizeContent(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeDedup()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	roots := make([]string, 0, len(c.Library.Roots))
	seen := make(map[string]struct{}, len(c.Library.Roots))
	for _, root := range c.Library.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("library.roots: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	if len(roots) == 0 {
		expanded, err := expandPath(defaultLibraryRoot)
		if err != nil {
			return fmt.Errorf("library.roots: %w", err)
		}
		roots = []string{expanded}
	}
	c.Library.Roots = roots

	c.Library.NamingPattern = strings.TrimSpace(c.Library.NamingPattern)
	if c.Library.NamingPattern == "" {
		c.Library.NamingPattern = defaultNamingPattern
	}
	return nil
}

func (c *Config) normalizeContent() error {
	var err error
	if strings.TrimSpace(c.Content.AuthFile) == "" {
		c.Content.AuthFile = defaultAuthFile
	}
	if c.Content.AuthFile, err = expandPath(c.Content.AuthFile); err != nil {
		return fmt.Errorf("content.auth_file: %w", err)
	}
	c.Content.Quality = strings.ToLower(strings.TrimSpace(c.Content.Quality))
	if c.Content.Quality == "" {
		c.Content.Quality = defaultQuality
	}
	c.Content.UserAgent = strings.TrimSpace(c.Content.UserAgent)
	if c.Content.UserAgent == "" {
		c.Content.UserAgent = defaultUserAgent
	}
	if c.Content.RequestTimeout <= 0 {
		c.Content.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizeDownload() {
	if c.Download.Concurrency <= 0 {
		c.Download.Concurrency = defaultConcurrency
	}
	if c.Download.RetryAttempts <= 0 {
		c.Download.RetryAttempts = defaultRetryAttempts
	}
	if c.Download.RetryDelaySeconds <= 0 {
		c.Download.RetryDelaySeconds = defaultRetryDelay
	}
}

func (c *Config) normalizeDedup() {
	if c.Dedup.SimilarityThreshold <= 0 {
		c.Dedup.SimilarityThreshold = defaultDedupThreshold
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHELFWARD_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
