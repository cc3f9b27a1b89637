package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/alumnet/alumnet/db"
	"github.com/alumnet/alumnet/internal/config"
	dbpkg "github.com/alumnet/alumnet/internal/db"
	"github.com/alumnet/alumnet/internal/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version|force N",
		Short:     "Manage the Postgres schema",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{dbpkg.MigrateUp, dbpkg.MigrateDown, dbpkg.MigrateVersion, dbpkg.MigrateForce},
		RunE: func(_ *cobra.Command, args []string) error {
			command, rest := args[0], args[1:]
			if err := dbpkg.ValidateMigrateCommand(command, rest); err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StorageDriverPostgres {
				return errors.New("migrate requires storage.driver = \"postgres\"")
			}
			log := logger.Init(cfg.Log.Level, cfg.Log.Format)
			migrations, err := db.Migrations()
			if err != nil {
				return err
			}
			return dbpkg.RunMigrate(log, cfg.Postgres, migrations, command, rest)
		},
	}
}
