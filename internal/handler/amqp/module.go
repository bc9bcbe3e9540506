package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	pubsubadapter "github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		ProvideDispatcher,
		NewNoticeHandler,
		NewWatermillRouter,
	),

	fx.Invoke(RegisterHandlers),
	fx.Invoke(runRouter),
)

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

// ProvideDispatcher binds the outgoing side of the bus to the catalog
// exchange.
func ProvideDispatcher(pp *pubsubadapter.PublisherProvider, logger *slog.Logger) (pubsubadapter.EventDispatcher, error) {
	pub, err := pp.Build(CatalogEventsExchange)
	if err != nil {
		return nil, err
	}
	return pubsubadapter.NewEventDispatcher(pub, logger), nil
}

func RegisterHandlers(h *NoticeHandler, router *message.Router, subProvider *pubsubadapter.SubscriberProvider) error {
	return h.RegisterHandlers(router, subProvider)
}

// runRouter ties the router's lifetime to the fx application.
func runRouter(lc fx.Lifecycle, router *message.Router, logger *slog.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(runCtx); err != nil {
					logger.Error("AMQP_ROUTER_STOPPED", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return router.Close()
		},
	})
}
