package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shelfward/internal/config"
	"shelfward/internal/library"
	"shelfward/internal/logging"
	"shelfward/internal/notifications"
	"shelfward/internal/pipeline"
	"shelfward/internal/queue"
	"shelfward/internal/scanner"
	"shelfward/internal/services/content"
	"shelfward/internal/services/converter"
	"shelfward/internal/tags"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			OutputPaths: []string{
				"stderr",
				filepath.Join(cfg.Paths.LogDir, "shelfward.log"),
			},
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

func (c *commandContext) openLedger() (*library.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return library.Open(filepath.Join(cfg.Paths.LogDir, "library.db"))
}

func (c *commandContext) newScanner(ledger *library.Ledger) (*scanner.Scanner, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return scanner.New(ledger, tags.NewStore(), logger), nil
}

// newPipeline assembles the full acquisition pipeline: credentials, content
// client, conversion tool, tag store, and notifications.
func (c *commandContext) newPipeline(store *queue.Store, ledger *library.Ledger) (*pipeline.Pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	creds, err := content.LoadCredentials(cfg.Content.AuthFile)
	if err != nil {
		return nil, err
	}
	client := content.NewHTTPClient(content.DefaultBaseURL, cfg.Content.UserAgent, creds, cfg.ContentTimeout(), logger)
	conv := converter.NewCLI(converter.WithBinary(cfg.FFmpegBinary()))

	return pipeline.New(cfg, store, ledger, client, conv, tags.NewStore(), notifications.NewService(cfg), creds, logger), nil
}

// lockStaging guards mutating commands against a concurrent shelfward run
// sharing the same staging area. The returned release func is idempotent.
func (c *commandContext) lockStaging() (func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.StagingDir, "shelfward.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire staging lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another shelfward instance is already working in this staging dir")
	}

	var once sync.Once
	return func() {
		once.Do(func() { _ = lock.Unlock() })
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
