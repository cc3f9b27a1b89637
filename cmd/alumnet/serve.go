package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/alumnet/alumnet/cmd/alumnet/modules"
)

func newServeCmd(configPath *string) *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				fx.Supply(modules.Options{ConfigPath: *configPath, MigrateOnStart: migrateFirst}),
				modules.InfraModule,
				modules.RealtimeModule,
				modules.DomainModule,
				modules.ServerModule,
				modules.WithLogger(),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving (postgres driver only)")
	return cmd
}
