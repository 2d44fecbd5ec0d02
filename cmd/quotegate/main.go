package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "quotegate",
		Short:         "quotegate - rate-limited, cached stock data gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (environment variables override it)")

	root.AddCommand(
		newServeCmd(&configPath),
		newPriceCmd(&configPath),
		newMetricsCmd(&configPath),
		newBatchCmd(&configPath),
		newPortfolioCmd(&configPath),
		newCacheCmd(&configPath),
	)
	return root
}
