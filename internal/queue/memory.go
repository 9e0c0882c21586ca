package queue

import (
	"context"
	"fmt"
	"sync"
)

const memoryBufferSize = 1024

// MemoryQueue delivers messages in process. Each subject keeps a bounded
// buffer; a publish to a full buffer fails instead of blocking the caller.
type MemoryQueue struct {
	mu            sync.Mutex
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	closed        bool
}

func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

// channel returns the buffer of subject. Callers hold q.mu.
func (q *MemoryQueue) channel(subject string) chan []byte {
	ch, ok := q.channels[subject]
	if !ok {
		ch = make(chan []byte, memoryBufferSize)
		q.channels[subject] = ch
	}
	return ch
}

func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	msg := append([]byte(nil), data...)
	select {
	case q.channel(subject) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("memory queue full for subject %s", subject)
	}
}

func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	ch := q.channel(subject)
	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-ch:
				if !ok {
					return
				}
				// no redelivery in process
				_ = handler(data)
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close stops all consumers and waits for them to return
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	for _, ch := range q.channels {
		close(ch)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Pending returns the number of undelivered messages of subject
func (q *MemoryQueue) Pending(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.channels[subject]; ok {
		return len(ch)
	}
	return 0
}
