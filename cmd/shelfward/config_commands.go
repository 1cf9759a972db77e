package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shelfward/internal/config"
	"shelfward/internal/pathing"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigSetPatternCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s (exists: %s)\n", resolved, yesNo(exists))
			rows := [][]string{
				{"Staging dir", cfg.Paths.StagingDir},
				{"Log dir", cfg.Paths.LogDir},
				{"Library roots", strings.Join(cfg.Library.Roots, ", ")},
				{"Naming pattern", cfg.Library.NamingPattern},
				{"Auth file", cfg.Content.AuthFile},
				{"Quality", cfg.Content.Quality},
				{"Concurrency", fmt.Sprintf("%d", cfg.Download.Concurrency)},
				{"Retry attempts", fmt.Sprintf("%d", cfg.Download.RetryAttempts)},
				{"Dedup enabled", yesNo(cfg.Dedup.Enabled)},
				{"Similarity threshold", fmt.Sprintf("%.2f", cfg.Dedup.SimilarityThreshold)},
				{"FFmpeg", cfg.FFmpegBinary()},
				{"Ntfy topic", cfg.Notifications.NtfyTopic},
				{"Log level", cfg.Logging.Level},
				{"Log format", cfg.Logging.Format},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point auth_file at your exported credentials before downloading.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigSetPatternCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "set-pattern <pattern>",
		Short:       "Validate a naming pattern and show where it would shelve a sample book",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := args[0]
			if err := pathing.ValidatePattern(pattern); err != nil {
				return err
			}

			sample := pathing.Fields{
				"Author":   "Terry Goodkind",
				"Title":    "Wizard's First Rule",
				"Series":   "Sword of Truth",
				"Volume":   "1",
				"Year":     "2008",
				"Narrator": "Sam Tsoutsouvas",
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Pattern is valid.")
			fmt.Fprintf(out, "Sample: %s\n", pathing.Build("", pattern, sample))
			fmt.Fprintln(out, "Set library.naming_pattern in your config file to use it.")
			return nil
		},
	}
}
