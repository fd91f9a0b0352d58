package main

import (
	"github.com/spf13/cobra"

	"quantguard/internal/config"
)

type rootOptions struct {
	configPath string
	envFile    string
}

// load 先读取 .env，再按 flag → QUANTGUARD_CONFIG → 默认路径加载配置。
func (o *rootOptions) load() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	return config.LoadOrDefault(config.ResolvePath(o.configPath))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "quantguard",
		Short: "Risk-gated trading signal engine",
		Long: `quantguard watches a pool of symbols, consults an advisory model on a
fixed schedule and gates every signal with local risk rules.

A fast tick loop enforces trailing and hard stops between scans. All
decisions are advisory: quantguard never places orders.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $QUANTGUARD_CONFIG or configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with secrets")

	cmd.AddCommand(
		newRunCmd(opts),
		newPositionsCmd(opts),
		newWatchlistCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}
