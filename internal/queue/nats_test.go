package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

// setupTestNATS starts an embedded JetStream-enabled NATS server
func setupTestNATS(t *testing.T) string {
	t.Helper()
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSQueueCreatesEventStream(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(NATSConfig{URL: url})
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	info, err := q.js.StreamInfo(natsStreamName)
	if err != nil {
		t.Fatalf("StreamInfo: %v", err)
	}
	assert.Equal(t, []string{natsStreamSubjects}, info.Config.Subjects)

	// a second queue reuses the stream
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	_, err = newNATSQueueWithConn(conn, 0)
	assert.NoError(t, err)
}

func TestNATSQueuePublishSubscribe(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(NATSConfig{URL: url})
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	if err := q.Publish(ctx, "chunkfs.events.worker", []byte("before")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var c collector
	if err := q.Subscribe("chunkfs.events.worker", c.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := q.Publish(ctx, "chunkfs.events.worker", []byte("after")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// durable consumer replays from the start of the stream
	waitFor(t, 5*time.Second, func() bool { return c.count() == 2 })
	assert.Equal(t, []byte("before"), c.get(0))

	assert.Error(t, q.Subscribe("chunkfs.events.worker", c.handle))
	assert.NoError(t, q.Unsubscribe("chunkfs.events.worker"))
	assert.Error(t, q.Unsubscribe("chunkfs.events.worker"))
}

func TestNATSQueuePublishOutsideStream(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(NATSConfig{URL: url})
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, q.Publish(ctx, "other.subject", []byte("x")))
}

func TestNATSQueueInvalidURL(t *testing.T) {
	_, err := newNATSQueue(NATSConfig{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}

func TestSanitizeConsumerName(t *testing.T) {
	assert.Equal(t, "chunkfs_events_worker", sanitizeConsumerName("chunkfs.events.worker"))
	assert.Equal(t, "a-b_c", sanitizeConsumerName("a-b_c"))
	assert.Equal(t, "x__", sanitizeConsumerName("x.>"))
}
