package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"shelfward/internal/catalog"
	"shelfward/internal/library"
	"shelfward/internal/scanner"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and reconcile the shelved library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newLibraryListCommand(ctx))
	cmd.AddCommand(newLibrarySyncCommand(ctx))
	cmd.AddCommand(newLibraryCompareCommand(ctx))
	return cmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var filterFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shelved audiobooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			entries, err := ledger.All()
			if err != nil {
				return err
			}
			if filterFlag != "" {
				entries = filterEntries(entries, filterFlag)
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Title < entries[j].Title })

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No shelved audiobooks.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.ID, entry.Title, entry.Path})
			}
			fmt.Fprintln(out, renderTable(out, []string{"ID", "Title", "Path"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			fmt.Fprintf(out, "%d audiobook(s).\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&filterFlag, "filter", "", "Fuzzy-match titles against this text")
	return cmd
}

// filterEntries keeps entries whose titles fuzzy-match the query, best
// matches first.
func filterEntries(entries []library.Entry, query string) []library.Entry {
	byTitle := make(map[string][]library.Entry, len(entries))
	titles := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := byTitle[entry.Title]; !ok {
			titles = append(titles, entry.Title)
		}
		byTitle[entry.Title] = append(byTitle[entry.Title], entry)
	}

	matches := fuzzy.RankFindFold(query, titles)
	sort.Sort(matches)

	filtered := make([]library.Entry, 0, len(matches))
	for _, match := range matches {
		filtered = append(filtered, byTitle[match.Target]...)
	}
	return filtered
}

func newLibrarySyncCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [root]",
		Short: "Rebuild ledger entries from files on disk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.PrimaryLibraryRoot()
			if len(args) == 1 {
				root = args[0]
			}

			release, err := ctx.lockStaging()
			if err != nil {
				return err
			}
			defer release()

			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			sc, err := ctx.newScanner(ledger)
			if err != nil {
				return err
			}
			stats, err := sc.Sync(cmd.Context(), root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Scanned %d file(s): %d recovered, %d added, %d updated, %d error(s).\n",
				stats.Scanned, stats.Recovered, stats.Added, stats.Updated, stats.Errors)
			return nil
		},
	}
	return cmd
}

func newLibraryCompareCommand(ctx *commandContext) *cobra.Command {
	var remoteFlag string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a remote catalog listing against the shelved library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if remoteFlag == "" {
				return fmt.Errorf("--remote is required (JSON export of catalog items)")
			}
			remote, err := loadRemoteListing(remoteFlag)
			if err != nil {
				return err
			}

			ledger, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			sc, err := ctx.newScanner(ledger)
			if err != nil {
				return err
			}
			local, err := sc.LocalBooks()
			if err != nil {
				return err
			}

			cmp := scanner.Compare(remote, local)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d shelved, %d missing, %d local-only.\n",
				len(cmp.Available), len(cmp.Missing), len(cmp.LocalOnly))

			if len(cmp.Missing) > 0 {
				rows := make([][]string, 0, len(cmp.Missing))
				for _, item := range cmp.Missing {
					rows = append(rows, []string{item.ID, item.Title, item.Authors.Display()})
				}
				fmt.Fprintln(out, "Missing from the library:")
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Title", "Authors"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			}
			if len(cmp.LocalOnly) > 0 {
				rows := make([][]string, 0, len(cmp.LocalOnly))
				for _, book := range cmp.LocalOnly {
					rows = append(rows, []string{book.ID, book.Title, book.Path})
				}
				fmt.Fprintln(out, "Shelved with no remote counterpart:")
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Title", "Path"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteFlag, "remote", "", "Path to a JSON file of remote catalog items")
	return cmd
}

func loadRemoteListing(path string) ([]catalog.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read remote listing: %w", err)
	}
	var items []catalog.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse remote listing: %w", err)
	}
	return items, nil
}
