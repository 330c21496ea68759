package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueFull reports that a bounded in-memory queue rejected a publish.
var ErrQueueFull = errors.New("queue: bounded queue is full")

const defaultQueueCapacity = 1024

// memoryQueue is a bounded FIFO deque. The signal channel carries one token
// per queued message so consumers can block without polling.
type memoryQueue struct {
	mu     sync.Mutex
	items  [][]byte
	signal chan struct{}
}

func newMemoryQueue(capacity int) *memoryQueue {
	return &memoryQueue{signal: make(chan struct{}, capacity)}
}

func (q *memoryQueue) push(body []byte, front bool) error {
	q.mu.Lock()
	if len(q.items) >= cap(q.signal) {
		q.mu.Unlock()
		return ErrQueueFull
	}
	if front {
		q.items = append([][]byte{body}, q.items...)
	} else {
		q.items = append(q.items, body)
	}
	q.mu.Unlock()
	q.signal <- struct{}{}
	return nil
}

func (q *memoryQueue) pop(ctx context.Context, done <-chan struct{}) ([]byte, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-done:
		return nil, false
	case <-q.signal:
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	body := q.items[0]
	q.items = q.items[1:]
	return body, true
}

func (q *memoryQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MemoryBroker is an in-process Broker used by tests and brokerless
// development runs. Negative acknowledgement requeues the message at the
// head so per-queue ordering survives redelivery, matching a single
// prefetch-1 consumer against a real broker.
type MemoryBroker struct {
	mu       sync.Mutex
	queues   map[string]*memoryQueue
	capacity int
	done     chan struct{}
	closed   bool
}

// NewMemoryBroker declares the named queues and returns the broker.
func NewMemoryBroker(queueNames ...string) *MemoryBroker {
	broker := &MemoryBroker{
		queues:   make(map[string]*memoryQueue, len(queueNames)),
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}
	for _, name := range queueNames {
		broker.queues[name] = newMemoryQueue(broker.capacity)
	}
	return broker
}

func (b *MemoryBroker) queue(name string) (*memoryQueue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("queue: undeclared queue %q", name)
	}
	return q, nil
}

// Publish appends one message to the named queue.
func (b *MemoryBroker) Publish(_ context.Context, queueName string, body []byte) error {
	q, err := b.queue(queueName)
	if err != nil {
		return err
	}
	return q.push(body, false)
}

// Consume drains the named queue one delivery at a time.
func (b *MemoryBroker) Consume(ctx context.Context, queueName string) (<-chan Delivery, error) {
	q, err := b.queue(queueName)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			body, ok := q.pop(ctx, b.done)
			if !ok {
				return
			}
			delivery := Delivery{
				Body: body,
				Ack:  func() error { return nil },
				Nack: func() error { return q.push(body, true) },
			}
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case out <- delivery:
			}
		}
	}()

	return out, nil
}

// Depth reports how many messages wait in the named queue. Test hook.
func (b *MemoryBroker) Depth(queueName string) int {
	q, err := b.queue(queueName)
	if err != nil {
		return 0
	}
	return q.depth()
}

// Close stops every consumer goroutine.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
