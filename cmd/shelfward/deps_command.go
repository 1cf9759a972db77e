package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfward/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check required external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			missing := 0
			for _, status := range deps.CheckBinaries(deps.Required(cfg)) {
				label := "ok"
				if !status.Available {
					label = "missing"
					if !status.Optional {
						missing++
					}
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Command
				}
				fmt.Fprintf(out, "%-10s %-8s %s\n", status.Name, label, detail)
			}
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			return nil
		},
	}
}
