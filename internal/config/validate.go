package config

import (
	"errors"
	"fmt"

	"shelfward/internal/pathing"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if len(c.Library.Roots) == 0 {
		return errors.New("library.roots must include at least one directory")
	}
	if err := pathing.ValidatePattern(c.Library.NamingPattern); err != nil {
		return fmt.Errorf("library.naming_pattern: %w", err)
	}
	return nil
}

func (c *Config) validateDownload() error {
	if err := ensurePositiveMap(map[string]int{
		"download.concurrency":         c.Download.Concurrency,
		"download.retry_attempts":      c.Download.RetryAttempts,
		"download.retry_delay_seconds": c.Download.RetryDelaySeconds,
		"content.request_timeout":      c.Content.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDedup() error {
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return errors.New("dedup.similarity_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
