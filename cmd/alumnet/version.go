package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alumnet/alumnet/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "alumnet %s %s\n", info, info.GoVersion)
		},
	}
}
