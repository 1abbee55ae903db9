package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove an owner's uploaded files from the portal workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOwner(owner); err != nil {
				return err
			}

			workspace, err := ctx.newWorkspace()
			if err != nil {
				return err
			}
			if err := workspace.RemoveOwner(owner); err != nil {
				return err
			}

			// A lock left behind by this owner goes with the workspace.
			locker, err := ctx.newLocker()
			if err != nil {
				return err
			}
			if info, ok := locker.Info(cmd.Context()); ok && info.Owner == owner {
				if err := locker.ForceRelease(cmd.Context()); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed uploaded files for %s.\n", owner)
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "u", "", "Owner whose uploads should be removed")
	return cmd
}
