package service

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			NewDetailService,
			fx.As(new(Detailer)),
		),
	),

	// [DECORATION_LAYER] Intercept Detailer to add cross-cutting concerns
	fx.Decorate(func(orig Detailer, logger *slog.Logger) Detailer {
		return &detailerMiddleware{
			next:   orig,
			logger: logger,
		}
	}),
)
