package queue

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func getRedisURL() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379"
}

// newTestRedisQueue skips the test when no Redis server is reachable
func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	q, err := newRedisQueue(RedisConfig{
		URL:    getRedisURL(),
		Stream: fmt.Sprintf("chunkfs-test-%d", time.Now().UnixNano()),
		Group:  "test-group",
	})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	return q
}

func TestRedisQueuePublishSubscribe(t *testing.T) {
	q := newTestRedisQueue(t)
	defer func() {
		q.client.Del(context.Background(), q.streamName("chunkfs.events.recovery"))
		_ = q.Close()
	}()

	var c collector
	if err := q.Subscribe("chunkfs.events.recovery", c.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := q.Publish(context.Background(), "chunkfs.events.recovery", []byte(`{"repaired":1}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return c.count() == 1 })
	assert.Equal(t, []byte(`{"repaired":1}`), c.get(0))

	assert.Error(t, q.Subscribe("chunkfs.events.recovery", c.handle))
	assert.NoError(t, q.Unsubscribe("chunkfs.events.recovery"))
}

func TestRedisQueueDefaults(t *testing.T) {
	q, err := newRedisQueue(RedisConfig{URL: getRedisURL()})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	defer func() { _ = q.Close() }()

	assert.Equal(t, "chunkfs", q.config.Stream)
	assert.Equal(t, "chunkfs-events", q.config.Group)
	assert.NotEmpty(t, q.config.Consumer)
	assert.Equal(t, "chunkfs:chunkfs.events.worker", q.streamName("chunkfs.events.worker"))
}

func TestRedisQueueUnreachable(t *testing.T) {
	_, err := newRedisQueue(RedisConfig{URL: "redis://127.0.0.1:1"})
	assert.Error(t, err)
}
