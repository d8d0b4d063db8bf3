package main

import (
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/kithbot/kith/internal/config"
	"github.com/kithbot/kith/internal/db"
	"github.com/kithbot/kith/internal/logger"
	"github.com/kithbot/kith/internal/version"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "kith",
		Short:         "Telegram bot that remembers the people you know",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to config.toml")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate <up|down|version|force N>",
			Short: "Manage the database schema",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				logger.Init(cfg.Log.Level, cfg.Log.Format)
				return db.RunMigrate(logger.L, cfg, args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("kith %s\n", version.GetInfo())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		return path
	}
	return config.DefaultConfigPath
}
