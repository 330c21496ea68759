package replication

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/queue"
)

var (
	errMissingSource    = errors.New("queue source is required")
	errMissingQueueName = errors.New("queue name is required")
	errMissingApply     = errors.New("apply function is required")
)

// ApplyFunc applies one decoded message to the replica. A nil return means
// acknowledge; any error means requeue.
type ApplyFunc func(ctx context.Context, msg Message) error

// ConsumerConfig carries the injected dependencies for one consumer loop.
type ConsumerConfig struct {
	Source    queue.Source
	QueueName string
	Apply     ApplyFunc
	Logger    *zap.Logger
}

// Consumer is the long-lived loop draining one queue. It processes strictly
// one message at a time: the next delivery is not taken until the current
// one is acknowledged or requeued, which preserves per-entity ordering.
type Consumer struct {
	source    queue.Source
	queueName string
	apply     ApplyFunc
	logger    *zap.Logger
}

// NewConsumer validates the configuration and returns a consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.QueueName == "" {
		return nil, errMissingQueueName
	}
	if cfg.Apply == nil {
		return nil, errMissingApply
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		source:    cfg.Source,
		queueName: cfg.QueueName,
		apply:     cfg.Apply,
		logger:    logger,
	}, nil
}

// Run drains the queue until the context is cancelled or the delivery
// channel closes. It never returns because of a message-level failure; those
// are settled by requeue and retried on redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(ctx, c.queueName)
	if err != nil {
		return err
	}

	c.logger.Info("replication consumer started", zap.String("queue", c.queueName))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Info("replication consumer stopped", zap.String("queue", c.queueName))
				return nil
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery queue.Delivery) {
	msg, err := DecodeMessage(delivery.Body)
	if err != nil {
		// A payload that cannot decode can never succeed; requeueing it
		// would redeliver forever. Settle it and surface the loss.
		c.logger.Error("undecodable replication message dropped",
			zap.String("queue", c.queueName),
			zap.Error(err))
		if ackErr := delivery.Ack(); ackErr != nil {
			c.logger.Error("ack failed", zap.String("queue", c.queueName), zap.Error(ackErr))
		}
		return
	}

	if err := c.apply(ctx, msg); err != nil {
		c.logger.Warn("replica apply failed, requeueing",
			zap.String("queue", c.queueName),
			zap.String("action", string(msg.Action)),
			zap.String("entity_id", msg.EntityID()),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
		if nackErr := delivery.Nack(); nackErr != nil {
			c.logger.Error("nack failed", zap.String("queue", c.queueName), zap.Error(nackErr))
		}
		return
	}

	if err := delivery.Ack(); err != nil {
		c.logger.Error("ack failed",
			zap.String("queue", c.queueName),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
		return
	}

	c.logger.Debug("replication message applied",
		zap.String("queue", c.queueName),
		zap.String("action", string(msg.Action)),
		zap.String("entity_id", msg.EntityID()),
		zap.String("event_id", msg.EventID))
}
