package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Settler settles one delivery with the broker. amqp.Delivery implements it.
type Settler interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// RabbitMQMessage is one run request handed to the worker. Exactly one of
// Complete, Discard, Retry or Release settles it.
type RabbitMQMessage struct {
	MessageID   string
	RoutingKey  string
	Body        []byte
	Timestamp   time.Time
	Redelivered bool
	settler     Settler
}

func NewMessage(messageID string, body []byte, timestamp time.Time, redelivered bool, settler Settler) RabbitMQMessage {
	return RabbitMQMessage{
		MessageID:   messageID,
		Body:        body,
		Timestamp:   timestamp,
		Redelivered: redelivered,
		settler:     settler,
	}
}

func messageFromDelivery(d amqp.Delivery) RabbitMQMessage {
	msg := NewMessage(d.MessageId, d.Body, d.Timestamp, d.Redelivered, d)
	msg.RoutingKey = d.RoutingKey
	return msg
}

// Complete acknowledges a handled request.
func (m RabbitMQMessage) Complete() error {
	return m.settler.Ack(false)
}

// Discard acknowledges a request that can never be handled, so the broker
// does not deliver it again.
func (m RabbitMQMessage) Discard() error {
	return m.settler.Ack(false)
}

// Retry puts a failed request back on the queue once. A request that already
// came back is rejected for good. It reports whether the request was requeued.
func (m RabbitMQMessage) Retry() (bool, error) {
	requeue := !m.Redelivered
	return requeue, m.settler.Nack(false, requeue)
}

// Release returns a request that was never handed to the worker.
func (m RabbitMQMessage) Release() error {
	return m.settler.Nack(false, true)
}

type RabbitMQConsumer interface {
	Consume(ctx context.Context) (<-chan RabbitMQMessage, error)
	GetQueueLength() (int, error)
	Close() error
}

type rabbitMQConsumer struct {
	channel     *amqp.Channel
	queue       string
	consumerTag string
	prefetch    int
	logger      zerolog.Logger
}

// NewRabbitMQConsumer consumes queue with manual acks. prefetch below one is
// raised to one.
func NewRabbitMQConsumer(channel *amqp.Channel, queue, consumerTag string, prefetch int, logger zerolog.Logger) RabbitMQConsumer {
	return &rabbitMQConsumer{
		channel:     channel,
		queue:       queue,
		consumerTag: consumerTag,
		prefetch:    max(prefetch, 1),
		logger:      logger.With().Str("queue", queue).Logger(),
	}
}

func (c *rabbitMQConsumer) Consume(ctx context.Context) (<-chan RabbitMQMessage, error) {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch on %s: %w", c.queue, err)
	}

	deliveries, err := c.channel.Consume(
		c.queue,       // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	output := make(chan RabbitMQMessage)
	go c.forward(ctx, deliveries, output)

	c.logger.Info().
		Str("consumer_tag", c.consumerTag).
		Int("prefetch", c.prefetch).
		Msg("RabbitMQ consumer started")

	return output, nil
}

// forward hands deliveries over one at a time. A delivery still in hand when
// ctx is done goes back to the queue untouched, so it keeps its one retry.
func (c *rabbitMQConsumer) forward(ctx context.Context, deliveries <-chan amqp.Delivery, output chan<- RabbitMQMessage) {
	defer close(output)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping RabbitMQ consumer")
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Info().Msg("RabbitMQ deliveries closed")
				return
			}

			msg := messageFromDelivery(d)
			select {
			case output <- msg:
			case <-ctx.Done():
				if err := msg.Release(); err != nil {
					c.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("Failed to release message on shutdown")
				}
				return
			}
		}
	}
}

func (c *rabbitMQConsumer) GetQueueLength() (int, error) {
	q, err := c.channel.QueueDeclarePassive(c.queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect %s: %w", c.queue, err)
	}
	return q.Messages, nil
}

// Close cancels the subscription. The broker then closes the deliveries
// channel, which ends forward and closes the worker's message channel.
func (c *rabbitMQConsumer) Close() error {
	if c.channel == nil {
		return nil
	}
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		return fmt.Errorf("failed to cancel consumer %s: %w", c.consumerTag, err)
	}
	c.logger.Info().Msg("RabbitMQ consumer closed")
	return nil
}
