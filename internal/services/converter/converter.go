// Package converter is the boundary to the external conversion tool that
// turns downloaded ciphertext into a playable audiobook container.
//
// The tool is a black box: it receives the voucher key/IV and performs a
// stream copy into the output container. Everything about audio codecs stays
// on its side of the boundary.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shelfward/internal/services"
)

var commandContext = exec.CommandContext

// Client defines conversion behaviour.
type Client interface {
	Convert(ctx context.Context, key, iv, inputPath, outputPath string) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the command-line conversion tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs the tool with the voucher material, copying streams from
// inputPath into outputPath. A failed run or an empty output file is an
// external tool error; partial output is removed.
func (c *CLI) Convert(ctx context.Context, key, iv, inputPath, outputPath string) error {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(iv) == "" {
		return services.Wrap(services.ErrValidation, "convert", "arguments", "voucher key and iv required", nil)
	}
	if inputPath == "" || outputPath == "" {
		return services.Wrap(services.ErrValidation, "convert", "arguments", "input and output paths required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "convert", "prepare output", outputPath, err)
	}

	args := []string{
		"-v", "quiet",
		"-stats",
		"-y",
		"-audible_key", key,
		"-audible_iv", iv,
		"-i", inputPath,
		"-c", "copy",
		outputPath,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(outputPath)
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "convert", c.binary,
			fmt.Sprintf("%s: %s", filepath.Base(inputPath), detail), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrExternalTool, "convert", c.binary,
			fmt.Sprintf("%s: produced no output", filepath.Base(inputPath)), errors.New("empty output file"))
	}
	return nil
}

var _ Client = (*CLI)(nil)
