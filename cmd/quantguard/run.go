package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quantguard/internal/app"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the tick loop, the scheduled scans and the live HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

