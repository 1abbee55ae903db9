package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var token string
	var force bool

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release the processing lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			locker, err := ctx.newLocker()
			if err != nil {
				return err
			}

			if force {
				if err := locker.ForceRelease(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Lock released.")
				return nil
			}

			if owner == "" || token == "" {
				return errors.New("either --force or both --owner and --token are required")
			}
			if err := locker.Release(cmd.Context(), owner, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Lock released.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "u", "", "Owner recorded in the lock")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Token returned when the lock was acquired")
	cmd.Flags().BoolVar(&force, "force", false, "Remove the lock regardless of owner and token")
	return cmd
}
