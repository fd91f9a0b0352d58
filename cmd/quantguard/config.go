package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	var showSecrets bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (defaults and env applied) as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			view := cfg.Redacted()
			if showSecrets {
				view = *cfg
			}
			raw, err := view.YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	show.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets unmasked")
	cmd.AddCommand(show)
	return cmd
}
