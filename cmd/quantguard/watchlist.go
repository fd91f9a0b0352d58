package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quantguard/internal/watchlist"
)

func newWatchlistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Inspect or edit the user watchlist merged into the target pool",
	}
	store := func() (*watchlist.Store, []string, error) {
		cfg, err := opts.load()
		if err != nil {
			return nil, nil, err
		}
		return watchlist.NewStore(cfg.Watchlist.Path, nil), cfg.Schedule.TargetPool, nil
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the watchlist and the merged targets",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, pool, err := store()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "watchlist: %s\n", joinOrDash(s.Symbols()))
				fmt.Fprintf(out, "targets:   %s\n", joinOrDash(s.Targets(pool)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "add SYMBOL...",
			Short: "Add symbols (written atomically)",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, _, err := store()
				if err != nil {
					return err
				}
				list, err := s.Add(args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ watchlist: %s\n", joinOrDash(list))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove SYMBOL...",
			Short: "Remove symbols",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, _, err := store()
				if err != nil {
					return err
				}
				list, err := s.Remove(args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ watchlist: %s\n", joinOrDash(list))
				return nil
			},
		},
	)
	return cmd
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
