package queue

import (
	"sync"
	"testing"
	"time"
)

// collector records delivered messages for assertions
type collector struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *collector) handle(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, append([]byte(nil), data...))
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *collector) get(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[i]
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
