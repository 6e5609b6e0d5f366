package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message. topic is the concrete topic the message
// arrived on, not the subscription filter.
type Handler func(topic string, message mqtt.Message) error

type IConsumer interface {
	// ConsumeMessage subscribes and blocks until ctx is done.
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Consumer subscribes one or more topic filters at a fixed QoS.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
	log     *zap.Logger

	inflight sync.WaitGroup
}

func NewConsumer(client mqtt.Client, qos byte, log *zap.Logger, topics ...string) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{client: client, topics: topics, qos: qos, log: log}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

func (c *Consumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.inflight.Add(1)
	defer c.inflight.Done()
	if c.handler == nil {
		c.log.Warn("no handler set", zap.String("topic", msg.Topic()))
		return
	}
	if err := c.handler(msg.Topic(), msg); err != nil {
		c.log.Error("handle message", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	filters := make(map[string]byte, len(c.topics))
	for _, t := range c.topics {
		filters[t] = c.qos
	}
	token := c.client.SubscribeMultiple(filters, c.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %v: %w", c.topics, token.Error())
	}
	c.log.Info("subscribed", zap.Strings("topics", c.topics), zap.Uint8("qos", c.qos))

	<-ctx.Done()

	c.client.Unsubscribe(c.topics...).Wait()
	// callers may close the stores once this returns
	c.inflight.Wait()
	return nil
}
