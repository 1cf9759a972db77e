package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shelfward/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current batch and in-flight downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			stats, err := store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			if stats.BatchID == "" {
				fmt.Fprintln(out, "No batch in progress.")
				return nil
			}

			fmt.Fprintf(out, "Batch %s (%s)\n", stats.BatchID, batchStateLabel(stats))
			rows := [][]string{
				{"Expected", fmt.Sprintf("%d", stats.ExpectedItems)},
				{"Queued", fmt.Sprintf("%d", stats.Queued)},
				{"Active", fmt.Sprintf("%d", stats.Active)},
				{"Completed", fmt.Sprintf("%d", stats.Completed)},
				{"Failed", fmt.Sprintf("%d", stats.Failed)},
				{"Download speed", humanize.Bytes(uint64(stats.SpeedTotal)) + "/s"},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows,
				[]columnAlignment{alignLeft, alignRight}))

			active, err := store.List(cmd.Context(),
				queue.StateLicenseRequested, queue.StateLicenseGranted,
				queue.StateDownloading, queue.StateDownloadComplete,
				queue.StateDecrypting, queue.StateRetrying)
			if err != nil {
				return err
			}
			if len(active) == 0 {
				return nil
			}

			itemRows := make([][]string, 0, len(active))
			for _, item := range active {
				itemRows = append(itemRows, []string{
					item.ID,
					item.Title,
					string(item.State),
					fmt.Sprintf("%.0f%%", item.PercentComplete()),
					humanize.Bytes(uint64(item.Speed)) + "/s",
					etaLabel(item.ETASeconds),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Title", "State", "Progress", "Speed", "ETA"}, itemRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}))
			return nil
		},
	}
}

func batchStateLabel(stats *queue.Statistics) string {
	if stats.BatchComplete {
		return "complete"
	}
	return "in progress"
}

func etaLabel(seconds int64) string {
	if seconds < 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}
