package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/logger"
)

// Migration commands accepted by RunMigrate.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateVersion = "version"
	MigrateForce   = "force"
)

// ValidateMigrateCommand checks command and its arguments before any connection is made.
func ValidateMigrateCommand(command string, args []string) error {
	switch command {
	case MigrateUp, MigrateDown, MigrateVersion:
		return nil
	case MigrateForce:
		if len(args) == 0 {
			return errors.New("force requires a version number argument")
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate command: %s (use: up, down, version, force)", command)
	}
}

// RunMigrate applies, rolls back or inspects migrations found at the root of migrationsFS.
func RunMigrate(log *slog.Logger, cfg config.PostgresConfig, migrationsFS fs.FS, command string, args []string) error {
	return RunMigrateDSN(log, DSN(cfg), migrationsFS, command, args)
}

// RunMigrateDSN is RunMigrate against an explicit connection URL.
func RunMigrateDSN(log *slog.Logger, dsn string, migrationsFS fs.FS, command string, args []string) error {
	if err := ValidateMigrateCommand(command, args); err != nil {
		return err
	}
	log = logger.OrDefault(log).With(slog.String("component", "migrate"))

	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: log}

	switch command {
	case MigrateUp:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case MigrateDown:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case MigrateForce:
		version, _ := strconv.Atoi(args[0])
		if err := m.Force(version); err != nil {
			return fmt.Errorf("migrate force: %w", err)
		}
	}

	ver, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("schema has no migrations applied", slog.String("command", command))
	case err != nil:
		return fmt.Errorf("migrate version: %w", err)
	default:
		log.Info("schema version", slog.String("command", command), slog.Uint64("version", uint64(ver)), slog.Bool("dirty", dirty))
	}
	return nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
