package queue

import "context"

// NoopQueue drops every message. Used when queue.type is "none".
type NoopQueue struct{}

func (NoopQueue) Publish(context.Context, string, []byte) error { return nil }

func (NoopQueue) Subscribe(string, MessageHandler) error { return nil }

func (NoopQueue) Unsubscribe(string) error { return nil }

func (NoopQueue) Close() error { return nil }
