package auth

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/bookrelay/chat-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"auth",

	fx.Provide(
		// The backend is configuration-driven: Postgres when a DSN is set,
		// the static in-memory table otherwise.
		func(cfg *config.Config) (Directory, error) {
			if cfg.Auth.DSN == "" {
				return NewStaticDirectory(cfg.Auth.Tokens), nil
			}
			db, err := sql.Open("postgres", cfg.Auth.DSN)
			if err != nil {
				return nil, fmt.Errorf("auth: open directory db: %w", err)
			}
			return NewSQLDirectory(db), nil
		},
		NewAuthenticator,
	),

	// [DECORATION_LAYER] Cache-aside plus observability around every lookup.
	fx.Decorate(func(orig Directory, logger *slog.Logger) Directory {
		return NewDirectoryMiddleware(NewCachedDirectory(orig), logger)
	}),
)
