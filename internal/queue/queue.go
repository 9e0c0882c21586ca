// Package queue publishes cluster events (worker transitions, replica pushes,
// recovery passes, namespace changes) to a pluggable message broker.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed queue
var ErrClosed = errors.New("queue: closed")

// Publisher publishes messages to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// MessageHandler handles one delivered message. A returned error asks the
// broker to redeliver where it supports that.
type MessageHandler func(data []byte) error

// Subscriber consumes messages of a subject
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) error
	Unsubscribe(subject string) error
	Close() error
}

// Queue combines Publisher and Subscriber
type Queue interface {
	Publisher
	Subscriber
}
