package postgres

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/bookrelay/chat-relay-service/config"
)

var Module = fx.Module("postgres",
	fx.Provide(
		fx.Annotate(
			ProvideStore,
			fx.As(new(ActionStore)),
		),
	),
)

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*Store, error) {
	store, err := Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			log.Info("[STORAGE_READY] catalog action store initialized")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}
