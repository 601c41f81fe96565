// Package messaging defines a minimal queue abstraction used to fan out
// governance events (approval requests created, decisions recorded) to
// interested consumers such as dashboards or notification bridges.
package messaging

import "context"

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message, blocking until one is available
	// or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// TryPublisher is implemented by queues that can attempt a publish without
// blocking.  Producers that must never stall on a slow or absent consumer
// probe for this interface and drop the message when capacity is exhausted.
type TryPublisher[T any] interface {
	// TryPublish enqueues t if capacity allows and reports whether the
	// message was accepted.
	TryPublish(ctx context.Context, t *T) (bool, error)
}

// Message represents a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure; the message may be redelivered up to the
	// queue's retry limit.
	Nack(err error) error
}
