package replication

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/queue"
)

var (
	// ErrDegradedWrite reports that the record store committed but the
	// replication enqueue failed. The mutation is not rolled back; the
	// replica diverges until operators reconcile.
	ErrDegradedWrite = errors.New("replication: degraded write")

	errMissingBroker = errors.New("broker publisher is required")
)

// IDProvider issues event identifiers for published messages.
type IDProvider interface {
	NewID() (string, error)
}

// PublisherConfig carries the injected dependencies for the publisher.
type PublisherConfig struct {
	Broker queue.Publisher
	IDs    IDProvider
	Logger *zap.Logger
}

// Publisher serializes replication messages and hands them to the durable
// queue. It must only be invoked after the corresponding record-store call
// returned success.
type Publisher struct {
	broker   queue.Publisher
	ids      IDProvider
	logger   *zap.Logger
	degraded atomic.Int64
}

// NewPublisher validates the configuration and returns a publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Broker == nil {
		return nil, errMissingBroker
	}
	ids := cfg.IDs
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{broker: cfg.Broker, ids: ids, logger: logger}, nil
}

// DVDInserted publishes the insert message for a freshly committed dvd.
func (p *Publisher) DVDInserted(ctx context.Context, snapshot DVDSnapshot) error {
	return p.publish(ctx, QueueDVDs, Message{Action: ActionInsert, DVD: &snapshot})
}

// DVDUpdated publishes the update message for a committed dvd mutation.
func (p *Publisher) DVDUpdated(ctx context.Context, snapshot DVDSnapshot) error {
	return p.publish(ctx, QueueDVDs, Message{Action: ActionUpdate, DVD: &snapshot})
}

// DVDDeleted publishes the delete marker for a removed dvd row.
func (p *Publisher) DVDDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, QueueDVDs, Message{Action: ActionDelete, ID: id})
}

// DirectorInserted publishes the insert message for a committed director.
func (p *Publisher) DirectorInserted(ctx context.Context, snapshot DirectorSnapshot) error {
	return p.publish(ctx, QueueDirectors, Message{Action: ActionInsert, Director: &snapshot})
}

// DirectorUpdated publishes the update message for a committed director
// mutation.
func (p *Publisher) DirectorUpdated(ctx context.Context, snapshot DirectorSnapshot) error {
	return p.publish(ctx, QueueDirectors, Message{Action: ActionUpdate, Director: &snapshot})
}

// DirectorDeleted publishes the delete marker for a removed director row.
func (p *Publisher) DirectorDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, QueueDirectors, Message{Action: ActionDelete, ID: id})
}

// DegradedWrites reports how many publishes failed after a successful
// commit. Operators reconcile the replica out of band.
func (p *Publisher) DegradedWrites() int64 {
	return p.degraded.Load()
}

func (p *Publisher) publish(ctx context.Context, queueName string, msg Message) error {
	eventID, err := p.ids.NewID()
	if err == nil {
		msg.EventID = eventID
	}

	body, err := msg.Encode()
	if err != nil {
		return err
	}

	if err := p.broker.Publish(ctx, queueName, body); err != nil {
		p.degraded.Add(1)
		p.logger.Error("replication publish failed, record store and replica diverge",
			zap.String("queue", queueName),
			zap.String("action", string(msg.Action)),
			zap.String("entity_id", msg.EntityID()),
			zap.String("event_id", msg.EventID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDegradedWrite, err)
	}

	p.logger.Debug("replication message published",
		zap.String("queue", queueName),
		zap.String("action", string(msg.Action)),
		zap.String("entity_id", msg.EntityID()),
		zap.String("event_id", msg.EventID))
	return nil
}
