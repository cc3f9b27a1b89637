package modules

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/mentorship"
	"github.com/alumnet/alumnet/internal/postings"
	"github.com/alumnet/alumnet/internal/verification"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		provideMentorshipStore,
		provideVerificationStore,
		providePostingsStore,
		fx.Annotate(func(d *event.Dispatcher) *event.Dispatcher { return d },
			fx.As(new(mentorship.Notifier), new(verification.Notifier), new(postings.Notifier)),
		),
		mentorship.NewService,
		verification.NewService,
		postings.NewService,
	),
)

func provideMentorshipStore(cfg config.Config, pool *pgxpool.Pool) mentorship.Store {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return mentorship.NewMemoryStore()
	}
	return mentorship.NewPostgresStore(pool)
}

func provideVerificationStore(cfg config.Config, pool *pgxpool.Pool) verification.Store {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return verification.NewMemoryStore()
	}
	return verification.NewPostgresStore(pool)
}

func providePostingsStore(cfg config.Config, pool *pgxpool.Pool) postings.Store {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return postings.NewMemoryStore()
	}
	return postings.NewPostgresStore(pool)
}
