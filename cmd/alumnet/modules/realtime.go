package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/event"
	"github.com/alumnet/alumnet/internal/gateway"
	"github.com/alumnet/alumnet/internal/metrics"
	"github.com/alumnet/alumnet/internal/presence"
)

var RealtimeModule = fx.Module(
	"realtime",
	fx.Provide(
		presence.NewRouter,
		presence.NewRegistry,
		provideDispatcher,
		provideGateway,
	),
)

func provideDispatcher(log *slog.Logger, registry *presence.Registry, m *metrics.Metrics) *event.Dispatcher {
	return event.NewDispatcher(log, registry.Router(), m)
}

func provideGateway(log *slog.Logger, registry *presence.Registry, cfg config.Config) *gateway.Gateway {
	return gateway.New(log, registry, gateway.OptionsFromConfig(cfg))
}
