// Package queue provides the RabbitMQ consumer that feeds raw deliveries
// to the dispatch handler.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"blueride-notifier/internal/dispatch"
	"blueride-notifier/internal/types"
)

// Handler is the per-message callback the consumer invokes. It must
// resolve the delivery to a terminal state itself.
type Handler interface {
	Handle(ctx context.Context, body []byte, d dispatch.Delivery) dispatch.AckState
}

// Consumer connects to RabbitMQ, declares the notification queue and
// pulls deliveries with manual acknowledgement. Connection loss is
// handled by reconnecting after a fixed wait until the context ends.
type Consumer struct {
	url           string
	queueName     string
	consumerTag   string
	prefetch      int
	reconnectWait time.Duration

	handler Handler
	logger  types.Logger
}

// Config holds the consumer's connection parameters.
type Config struct {
	URL           string
	QueueName     string
	PrefetchCount int
	ReconnectWait time.Duration
}

// NewConsumer creates a Consumer. A unique consumer tag is generated so
// concurrent worker instances are distinguishable on the broker.
func NewConsumer(cfg Config, handler Handler, logger types.Logger) *Consumer {
	return &Consumer{
		url:           cfg.URL,
		queueName:     cfg.QueueName,
		consumerTag:   "notifier-" + uuid.NewString(),
		prefetch:      cfg.PrefetchCount,
		reconnectWait: cfg.ReconnectWait,
		handler:       handler,
		logger:        logger,
	}
}

// Run consumes until ctx is canceled. Connection failures log and retry
// after the configured wait; only context cancellation returns.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("queue connection lost, reconnecting",
			"error", err,
			"wait", c.reconnectWait.String(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectWait):
		}
	}
}

// consume holds one connection for its lifetime. Returns when the
// delivery channel closes or the context is canceled. In-flight handlers
// are drained before returning so no delivery is abandoned mid-resolve.
func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", c.queueName, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queueName, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consuming notification queue",
		"queue", c.queueName,
		"consumer_tag", c.consumerTag,
		"prefetch", c.prefetch,
	)

	var wg sync.WaitGroup
	for d := range deliveries {
		wg.Add(1)
		go func(d amqp.Delivery) {
			defer wg.Done()
			c.handler.Handle(ctx, d.Body, amqpDelivery{d: d})
		}(d)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("delivery channel closed")
}

// amqpDelivery adapts an amqp091 delivery to the dispatch.Delivery
// operations.
type amqpDelivery struct {
	d amqp.Delivery
}

var _ dispatch.Delivery = amqpDelivery{}

func (a amqpDelivery) Ack() error {
	return a.d.Ack(false)
}

func (a amqpDelivery) Reject(requeue bool) error {
	return a.d.Nack(false, requeue)
}
