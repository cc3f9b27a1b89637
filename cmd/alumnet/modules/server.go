package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/gateway"
	"github.com/alumnet/alumnet/internal/handlers"
	"github.com/alumnet/alumnet/internal/presence"
	"github.com/alumnet/alumnet/internal/server"
	"github.com/alumnet/alumnet/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(handlers.NewMentorshipHandler),
		provideServerHandler(handlers.NewVerificationHandler),
		provideServerHandler(handlers.NewPostingsHandler),
		provideServerHandler(handlers.NewPresenceHandler),
		provideServerHandler(provideMetricsHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideMetricsHandler(gatherer prometheus.Gatherer) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(gatherer)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	Gateway        *gateway.Gateway
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	all := make([]server.Handler, 0, len(params.ServerHandlers)+1)
	all = append(all, params.ServerHandlers...)
	all = append(all, params.Gateway)
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret,
		params.Gateway.Path(), all...)
}

// startServer runs the listener. On stop it shuts the listener down, closes
// every websocket session and waits for their goroutines.
func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, registry *presence.Registry, gw *gateway.Gateway, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting alumnet", slog.String("version", version.Get().String()))
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return stopServing(ctx, srv.Stop, registry, gw)
		},
	})
}

// stopServing closes the listener, then every websocket session. Sessions are
// closed even when the listener fails to stop cleanly.
func stopServing(ctx context.Context, stopHTTP func(context.Context) error, registry *presence.Registry, gw *gateway.Gateway) error {
	var errs []error
	if err := stopHTTP(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server stop: %w", err))
	}
	registry.Shutdown()
	gw.Wait()
	return errors.Join(errs...)
}
