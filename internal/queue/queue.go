// Package queue provides the durable queue abstraction between the
// replication publisher and the replication consumers. Deliveries are
// settled explicitly: acknowledged messages are removed permanently,
// negatively acknowledged messages are requeued for redelivery.
package queue

import "context"

// Delivery is one message taken from a queue awaiting explicit settlement.
type Delivery struct {
	Body []byte
	// Ack removes the message permanently from the queue.
	Ack func() error
	// Nack requeues the message for redelivery.
	Nack func() error
}

// Publisher hands serialized messages to a durable queue. Publish must only
// be invoked after the corresponding record-store commit has succeeded.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Source delivers queued messages for explicit-ack consumption. The returned
// channel closes when the context is cancelled or the underlying transport
// shuts down.
type Source interface {
	Consume(ctx context.Context, queueName string) (<-chan Delivery, error)
}

// Broker combines both ends of a queue transport.
type Broker interface {
	Publisher
	Source
	Close() error
}
