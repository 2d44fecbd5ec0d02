package main

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/quotegate/pkg/portfolio"
)

func newPortfolioCmd(configPath *string) *cobra.Command {
	var (
		path string
		live bool
	)

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Print the portfolio workbook as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if path == "" {
				path = a.cfg.Portfolio.Path
			}
			sheet, rows, err := portfolio.LoadSheet(path)
			if err != nil {
				return err
			}

			p := portfolio.Build(sheet, rows)
			if live {
				a.enricher.Enrich(cmd.Context(), p)
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "workbook path (defaults to the configured portfolio path)")
	cmd.Flags().BoolVar(&live, "live", false, "refresh items with live prices and metrics")
	return cmd
}
