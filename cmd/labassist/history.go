package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and cleanups from the local journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			exchanges, err := j.RecentExchanges(ctx, limit)
			if err != nil {
				return err
			}
			sweeps, err := j.RecentSweeps(ctx, limit)
			if err != nil {
				return err
			}
			renderExchanges(a.out, exchanges)
			fmt.Fprintln(a.out)
			renderSweeps(a.out, sweeps)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries to show per section (0 for all)")
	return cmd
}
