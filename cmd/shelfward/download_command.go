package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfward/internal/catalog"
	"shelfward/internal/pipeline"
)

const summaryRounding = 100 * time.Millisecond

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		qualityFlag  string
		accountFlag  string
		libraryFlag  string
		fileFlag     string
		cleanupFlag  bool
		parallelFlag int
	)

	cmd := &cobra.Command{
		Use:   "download [item-id...]",
		Short: "Download, convert, and shelve audiobooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectItemIDs(args, fileFlag)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no item ids given; pass them as arguments or via --file")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if accountFlag != "" {
				dir := filepath.Dir(cfg.Content.AuthFile)
				cfg.Content.AuthFile = filepath.Join(dir, "auth-"+accountFlag+".json")
			}
			if libraryFlag != "" {
				cfg.Library.Roots = append([]string{libraryFlag}, cfg.Library.Roots...)
			}
			if parallelFlag > 0 {
				cfg.Download.Concurrency = parallelFlag
			}

			release, err := ctx.lockStaging()
			if err != nil {
				return err
			}
			defer release()

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			pipe, err := ctx.newPipeline(store, ledger)
			if err != nil {
				return err
			}

			requests := make([]pipeline.Request, 0, len(ids))
			for _, id := range ids {
				requests = append(requests, pipeline.Request{
					ID:      id,
					Quality: qualityFlag,
					Cleanup: cleanupFlag,
				})
			}

			summary, err := pipe.Run(cmd.Context(), requests)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d items failed", summary.Failed, len(requests))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&qualityFlag, "quality", "", "Audio quality (high or normal; defaults to config)")
	cmd.Flags().StringVar(&accountFlag, "account", "", "Named credentials file to use (auth-<name>.json)")
	cmd.Flags().StringVar(&libraryFlag, "library", "", "Shelve into this library root instead of the configured one")
	cmd.Flags().StringVar(&fileFlag, "file", "", "Read item ids from a file, one per line")
	cmd.Flags().BoolVar(&cleanupFlag, "cleanup", false, "Remove staging artifacts after shelving")
	cmd.Flags().IntVar(&parallelFlag, "max-parallel", 0, "Concurrent downloads (defaults to config)")
	return cmd
}

// collectItemIDs merges args and an optional id file, validating and
// de-duplicating as it goes.
func collectItemIDs(args []string, file string) ([]string, error) {
	raw := make([]string, 0, len(args))
	raw = append(raw, args...)

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open id file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read id file: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, candidate := range raw {
		id := strings.ToUpper(strings.TrimSpace(candidate))
		if !catalog.ValidID(id) {
			return nil, fmt.Errorf("invalid item id %q", candidate)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func printSummary(cmd *cobra.Command, summary *pipeline.Summary) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		status := "shelved"
		detail := outcome.Path
		switch {
		case outcome.Err != nil:
			status = "failed"
			detail = outcome.Err.Error()
		case outcome.Skipped:
			status = "skipped"
		}
		title := outcome.Title
		if title == "" {
			title = outcome.ID
		}
		rows = append(rows, []string{outcome.ID, title, status, detail})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"ID", "Title", "Status", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
	fmt.Fprintf(out, "%d succeeded (%d skipped), %d failed in %s\n",
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Elapsed.Round(summaryRounding))
}
