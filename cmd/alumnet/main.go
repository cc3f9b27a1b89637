package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alumnet/alumnet/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "alumnet",
		Short:         "Realtime presence, notification routing and workflow API for the alumni platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = config.DefaultConfigPath
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to config.toml (env CONFIG_PATH)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newTokenCmd(&configPath),
		newVersionCmd(),
	)
	return root
}
