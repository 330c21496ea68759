package queue

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errMissingQueueName = errors.New("queue name is required")

// AMQPBroker is the production broker backed by a RabbitMQ channel. Queues
// are declared durable at construction and messages are published with the
// persistent delivery mode so they survive a broker restart.
type AMQPBroker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

// DialAMQP connects to the broker, opens a channel, and declares every named
// queue durable. It fails fast so boot can abort when the broker is down.
func DialAMQP(url string, queueNames []string, logger *zap.Logger) (*AMQPBroker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	// One unsettled delivery per consumer keeps the loop strictly serial.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}

	for _, name := range queueNames {
		if _, err := channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("amqp declare %s: %w", name, err)
		}
		logger.Info("queue declared", zap.String("queue", name))
	}

	return &AMQPBroker{conn: conn, channel: channel, logger: logger}, nil
}

// Publish enqueues one persistent message.
func (b *AMQPBroker) Publish(ctx context.Context, queueName string, body []byte) error {
	if queueName == "" {
		return errMissingQueueName
	}
	return b.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume opens an explicit-ack consumer on the named queue and adapts its
// deliveries. The adapter goroutine stops when the context is cancelled or
// the channel closes.
func (b *AMQPBroker) Consume(ctx context.Context, queueName string) (<-chan Delivery, error) {
	if queueName == "" {
		return nil, errMissingQueueName
	}

	deliveries, err := b.channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume %s: %w", queueName, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-deliveries:
				if !ok {
					return
				}
				delivery := Delivery{
					Body: raw.Body,
					Ack:  func() error { return raw.Ack(false) },
					Nack: func() error { return raw.Nack(false, true) },
				}
				select {
				case <-ctx.Done():
					// Unsettled delivery; the broker redelivers it.
					return
				case out <- delivery:
				}
			}
		}
	}()

	return out, nil
}

// Close tears down the channel and connection.
func (b *AMQPBroker) Close() error {
	channelErr := b.channel.Close()
	connErr := b.conn.Close()
	if channelErr != nil {
		return channelErr
	}
	return connErr
}
