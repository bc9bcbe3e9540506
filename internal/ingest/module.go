package ingest

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/bookrelay/chat-relay-service/config"
	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
	"github.com/bookrelay/chat-relay-service/internal/storage/postgres"
)

var Module = fx.Module("ingest",
	fx.Provide(
		ProvideFetcher,
		ProvideConsumer,
	),
	fx.Invoke(runConsumer),
)

func ProvideFetcher(cfg *config.Config) Fetcher {
	return NewKafkaFetcher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
}

func ProvideConsumer(
	fetcher Fetcher,
	store postgres.ActionStore,
	dispatcher pubsub.EventDispatcher,
	cfg *config.Config,
	logger *slog.Logger,
) *Consumer {
	return NewConsumer(fetcher, store, dispatcher, logger, cfg.Kafka.RetryInterval)
}

func runConsumer(lc fx.Lifecycle, consumer *Consumer, fetcher Fetcher, logger *slog.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("[INGEST_STOPPED] consumer loop exited", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return fetcher.Close()
		},
	})
}
