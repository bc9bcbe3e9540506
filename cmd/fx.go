package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/bookrelay/chat-relay-service/config"
	httpsrv "github.com/bookrelay/chat-relay-service/infra/server/http"
	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
	"github.com/bookrelay/chat-relay-service/internal/auth"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
	amqphandler "github.com/bookrelay/chat-relay-service/internal/handler/amqp"
	wshandler "github.com/bookrelay/chat-relay-service/internal/handler/ws"
	"github.com/bookrelay/chat-relay-service/internal/ingest"
	"github.com/bookrelay/chat-relay-service/internal/service"
	"github.com/bookrelay/chat-relay-service/internal/storage/postgres"
)

// NewServerApp wires the websocket chat server: auth, the group fabric, the
// HTTP surface and, when a bus is configured, the staff notice listener.
func NewServerApp(cfg *config.Config) *fx.App {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		auth.Module,
		service.Module,
		registry.Module,
		wshandler.Module,
		httpsrv.Module,
	}

	if cfg.AMQP.URL != "" {
		opts = append(opts, amqphandler.Module)
	}

	return fx.New(opts...)
}

// NewConsumerApp wires the catalog event ingestion consumer: the broker
// fetcher, the audit store and the outgoing notice dispatcher.
func NewConsumerApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideConsumerDispatcher,
		),
		postgres.Module,
		ingest.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Live log-level adjustment: rewriting the config file takes effect
	// without a restart. Other settings still need one.
	if err := cfg.Watch(func(fresh *config.Config) {
		level.Set(parseLevel(fresh.Log.Level))
		logger.Info("LOG_LEVEL_RELOADED", "level", fresh.Log.Level)
	}); err != nil {
		logger.Warn("CONFIG_WATCH_UNAVAILABLE", "err", err)
	}

	return logger
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

// ProvideConsumerDispatcher gives the consumer its outgoing side of the bus.
// Without a configured bus exports degrade to no-ops and ingestion keeps
// persisting.
func ProvideConsumerDispatcher(cfg *config.Config, logger *slog.Logger, wmLogger watermill.LoggerAdapter) (pubsub.EventDispatcher, error) {
	if cfg.AMQP.URL == "" {
		return pubsub.NewNopDispatcher(), nil
	}

	pub, err := pubsub.NewPublisherProvider(cfg, wmLogger).Build(amqphandler.CatalogEventsExchange)
	if err != nil {
		return nil, err
	}
	return pubsub.NewEventDispatcher(pub, logger), nil
}
