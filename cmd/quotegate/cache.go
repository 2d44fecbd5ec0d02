package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached data",
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove all cached data, rate counters and throttle guards",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.ResetAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cached data cleared.")
			return nil
		},
	}

	cmd.AddCommand(flushCmd)
	return cmd
}
