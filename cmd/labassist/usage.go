package main

import (
	"github.com/spf13/cobra"
)

func newUsageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Count remote threads, assistant files and vector stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.sweeper().Survey(cmd.Context())
			if err != nil {
				return err
			}
			renderUsage(a.out, u)
			return nil
		},
	}
}
