package replication

import (
	"context"
	"errors"
	"testing"
)

type recordedPublish struct {
	queueName string
	body      []byte
}

type spyBroker struct {
	published []recordedPublish
	failWith  error
}

func (b *spyBroker) Publish(_ context.Context, queueName string, body []byte) error {
	if b.failWith != nil {
		return b.failWith
	}
	b.published = append(b.published, recordedPublish{queueName: queueName, body: body})
	return nil
}

func newTestPublisher(t *testing.T, broker *spyBroker) *Publisher {
	t.Helper()
	publisher, err := NewPublisher(PublisherConfig{Broker: broker})
	if err != nil {
		t.Fatalf("unexpected publisher error: %v", err)
	}
	return publisher
}

func TestPublisherRoutesDVDMessagesToDVDQueue(t *testing.T) {
	broker := &spyBroker{}
	publisher := newTestPublisher(t, broker)

	if err := publisher.DVDInserted(context.Background(), sampleDVDSnapshot()); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if len(broker.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(broker.published))
	}
	if broker.published[0].queueName != QueueDVDs {
		t.Fatalf("expected dvds queue, got %s", broker.published[0].queueName)
	}

	msg, err := DecodeMessage(broker.published[0].body)
	if err != nil {
		t.Fatalf("published body must decode: %v", err)
	}
	if msg.Action != ActionInsert {
		t.Fatalf("expected insert action, got %s", msg.Action)
	}
	if msg.EventID == "" {
		t.Fatalf("expected a trace event id on the wire")
	}
	if msg.DVD == nil || msg.DVD.ID != "7" {
		t.Fatalf("expected dvd snapshot for id 7: %#v", msg.DVD)
	}
}

func TestPublisherRoutesDirectorDeleteToDirectorQueue(t *testing.T) {
	broker := &spyBroker{}
	publisher := newTestPublisher(t, broker)

	if err := publisher.DirectorDeleted(context.Background(), "3"); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if broker.published[0].queueName != QueueDirectors {
		t.Fatalf("expected directors queue, got %s", broker.published[0].queueName)
	}
	msg, err := DecodeMessage(broker.published[0].body)
	if err != nil {
		t.Fatalf("published body must decode: %v", err)
	}
	if msg.Action != ActionDelete || msg.ID != "3" {
		t.Fatalf("expected id-only delete for 3: %#v", msg)
	}
	if msg.DVD != nil || msg.Director != nil {
		t.Fatalf("delete must not carry a snapshot")
	}
}

func TestEnqueueFailureIsDegradedWrite(t *testing.T) {
	broker := &spyBroker{failWith: errors.New("broker down")}
	publisher := newTestPublisher(t, broker)

	err := publisher.DVDUpdated(context.Background(), sampleDVDSnapshot())
	if !errors.Is(err, ErrDegradedWrite) {
		t.Fatalf("expected degraded-write error, got %v", err)
	}
	if publisher.DegradedWrites() != 1 {
		t.Fatalf("expected degraded-write counter at 1, got %d", publisher.DegradedWrites())
	}

	if err := publisher.DVDDeleted(context.Background(), "7"); !errors.Is(err, ErrDegradedWrite) {
		t.Fatalf("expected degraded-write error, got %v", err)
	}
	if publisher.DegradedWrites() != 2 {
		t.Fatalf("expected degraded-write counter at 2, got %d", publisher.DegradedWrites())
	}
}
