// Package modules assembles the server's dependency graph with fx.
package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/alumnet/alumnet/db"
	"github.com/alumnet/alumnet/internal/config"
	dbpkg "github.com/alumnet/alumnet/internal/db"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

// Options carries command-line choices into the graph.
type Options struct {
	ConfigPath     string
	MigrateOnStart bool
}

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		providePrometheus,
		provideMetrics,
		provideDBConn,
	),
)

// WithLogger routes fx lifecycle logs through slog.
func WithLogger() fx.Option {
	return fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
	})
}

func provideConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

// providePrometheus returns a private registry so tests and multiple apps do
// not collide on the global one.
func providePrometheus() (*prometheus.Registry, prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg, reg
}

func provideMetrics(reg prometheus.Registerer) *metrics.Metrics {
	return metrics.New(reg)
}

// provideDBConn opens the pool for the postgres driver and returns nil for
// the memory driver.
func provideDBConn(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, opts Options) (*pgxpool.Pool, error) {
	if cfg.Storage.Driver != config.StorageDriverPostgres {
		log.Warn("using in-memory storage; workflow state is lost on restart")
		return nil, nil
	}
	if opts.MigrateOnStart {
		migrations, err := db.Migrations()
		if err != nil {
			return nil, err
		}
		if err := dbpkg.RunMigrate(log, cfg.Postgres, migrations, dbpkg.MigrateUp, nil); err != nil {
			return nil, err
		}
	}
	conn, err := dbpkg.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}
