package main

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/quotegate/internal/server"
)

func newPriceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "price SYMBOL",
		Short: "Fetch the current price of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			price, err := a.fetcher.FetchPrice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), server.PriceResponse{Symbol: args[0], Price: price})
		},
	}
}

func newMetricsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics SYMBOL",
		Short: "Fetch the P/E ratio and next earnings date of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.fetcher.FetchMetrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), server.MetricsResponse{
				Symbol:         args[0],
				PERatio:        m.PERatio,
				LatestEarnings: m.LatestEarnings,
			})
		},
	}
}

func newBatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "batch SYMBOL...",
		Short: "Fetch price and metrics for several symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(cmd.OutOrStdout(), a.fetcher.FetchBatch(cmd.Context(), args))
		},
	}
}
