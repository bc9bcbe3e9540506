package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/bookrelay/chat-relay-service/config"
)

var Module = fx.Module("http-server",
	fx.Provide(ProvideServer),
	fx.Invoke(runServer),
)

func ProvideServer(cfg *config.Config, handler chi.Router, logger *slog.Logger) *Server {
	return NewServer(cfg.HTTP.Addr, handler, logger)
}

func runServer(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			server.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
}
