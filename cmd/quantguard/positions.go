package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quantguard/internal/ledger"
	"quantguard/internal/livecache"
)

func newPositionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Print the persisted ledger with the last cached prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			positions, err := ledger.NewFileStore(cfg.Ledger.Path).Load()
			if err != nil {
				return err
			}
			prices, err := livecache.Read(cfg.LiveCache.Path)
			if err != nil {
				prices = nil
			}
			out := cmd.OutOrStdout()
			if len(positions) == 0 {
				fmt.Fprintln(out, "(no positions)")
				return nil
			}
			symbols := make([]string, 0, len(positions))
			for sym := range positions {
				symbols = append(symbols, sym)
			}
			sort.Strings(symbols)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tVOLUME\tCOST\tHIGHEST\tLAST\tPNL%")
			for _, sym := range symbols {
				pos := positions[sym]
				last, pnl := "-", "-"
				if e, ok := prices[sym]; ok && e.Price > 0 {
					last = fmt.Sprintf("%.3f", e.Price)
					pnl = fmt.Sprintf("%+.2f", (e.Price-pos.CostPrice)/pos.CostPrice*100)
				}
				fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%s\t%s\n", sym, pos.Volume, pos.CostPrice, pos.HighestPrice, last, pnl)
			}
			return tw.Flush()
		},
	}
}
