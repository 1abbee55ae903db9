package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newExtendCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Grow the validity window of the processing lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return errors.New("--duration must be positive")
			}

			locker, err := ctx.newLocker()
			if err != nil {
				return err
			}

			extended, err := locker.Extend(cmd.Context(), duration)
			if err != nil {
				return err
			}
			if !extended {
				fmt.Fprintf(cmd.OutOrStdout(), "Not extended: %s does not exceed the current window of %s.\n",
					duration, locker.DefaultDuration())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lock duration extended to %s.\n", duration)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "New validity window, e.g. 45m or 2h")
	return cmd
}
