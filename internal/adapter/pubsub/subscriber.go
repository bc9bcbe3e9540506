package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bookrelay/chat-relay-service/config"
)

// SubscriberProvider builds subscribers with one durable queue per handler,
// bound to a topic exchange with a wildcard routing key.
type SubscriberProvider struct {
	cfg    *config.Config
	logger watermill.LoggerAdapter
}

func NewSubscriberProvider(cfg *config.Config, logger watermill.LoggerAdapter) *SubscriberProvider {
	return &SubscriberProvider{cfg: cfg, logger: logger}
}

func (sp *SubscriberProvider) Build(queue, exchange, topic string) (message.Subscriber, error) {
	c := amqp.NewDurablePubSubConfig(sp.cfg.AMQP.URL, amqp.GenerateQueueNameConstant(queue))
	c.Exchange.GenerateName = func(string) string { return exchange }
	c.Exchange.Type = "topic"
	c.QueueBind.GenerateRoutingKey = func(string) string { return topic }

	return amqp.NewSubscriber(c, sp.logger)
}
