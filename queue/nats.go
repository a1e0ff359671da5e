package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is the subject NATSQueue publishes on when no subject is given.
const DefaultNATSSubject = "commands.submitted"

type natsConnection interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSQueue publishes JSON-encoded entries on a NATS subject.
type NATSQueue struct {
	conn    natsConnection
	subject string
}

func NewNATSQueue(address, subject string) (*NATSQueue, error) {
	if address == "" {
		address = nats.DefaultURL
	}
	conn, err := nats.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSQueue(conn, subject), nil
}

func newNATSQueue(conn natsConnection, subject string) *NATSQueue {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSQueue{conn: conn, subject: subject}
}

func (q *NATSQueue) Store(ctx context.Context, entry Entry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := q.conn.Publish(q.subject, raw); err != nil {
		return fmt.Errorf("nats publish to %s: %w", q.subject, err)
	}
	return nil
}

func (q *NATSQueue) Close() error {
	if q == nil || q.conn == nil {
		return nil
	}
	q.conn.Close()
	return nil
}
