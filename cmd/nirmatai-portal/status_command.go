package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the portal is free to accept a submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			locker, err := ctx.newLocker()
			if err != nil {
				return err
			}

			cmdCtx := cmd.Context()
			if !locker.IsLocked(cmdCtx) {
				fmt.Fprintln(cmd.OutOrStdout(), "System is open for submissions.")
				return nil
			}

			rows := [][]string{}
			if info, ok := locker.Info(cmdCtx); ok {
				rows = append(rows,
					[]string{"Owner", info.Owner},
					[]string{"Acquired at", info.AcquiredAt.Format(time.RFC3339)},
				)
			}
			if remaining, ok := locker.Remaining(cmdCtx); ok {
				rows = append(rows, []string{"Remaining", remaining.Round(time.Second).String()})
			}

			fmt.Fprintln(cmd.OutOrStdout(), "The system is currently processing a submission.")
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Lock", "Value"}, rows))
			return nil
		},
	}
}
