package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soltixdb/chunkfs/internal/workerclient"
)

type fakeWorker struct {
	down     bool // unreachable
	inactive bool // reachable but self-reports inactive
	chunks   map[string][]byte
}

// fakeCluster is an in-memory workerclient.Client
type fakeCluster struct {
	mu       sync.Mutex
	workers  map[string]*fakeWorker
	putDelay time.Duration
	inFlight int
	maxPuts  int
	puts     int
}

func newFakeCluster(addrs ...string) *fakeCluster {
	c := &fakeCluster{workers: make(map[string]*fakeWorker)}
	for _, a := range addrs {
		c.workers[a] = &fakeWorker{chunks: make(map[string][]byte)}
	}
	return c
}

func chunkID(fileID string, index int) string { return fmt.Sprintf("%s/%d", fileID, index) }

func (c *fakeCluster) setDown(addr string, down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[addr].down = down
}

func (c *fakeCluster) setInactive(addr string, inactive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[addr].inactive = inactive
}

func (c *fakeCluster) has(addr, fileID string, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.workers[addr].chunks[chunkID(fileID, index)]
	return ok
}

func (c *fakeCluster) drop(addr, fileID string, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.workers[addr].chunks, chunkID(fileID, index))
}

func (c *fakeCluster) worker(addr string) (*fakeWorker, error) {
	w, ok := c.workers[addr]
	if !ok || w.down {
		return nil, fmt.Errorf("%w: %s refused", workerclient.ErrWorkerUnavailable, addr)
	}
	return w, nil
}

func (c *fakeCluster) Probe(_ context.Context, addr string) (workerclient.ProbeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.worker(addr)
	if err != nil {
		return workerclient.ProbeResult{}, err
	}
	return workerclient.ProbeResult{NodeID: addr, Active: !w.inactive}, nil
}

func (c *fakeCluster) Put(_ context.Context, addr, fileID string, index int, data []byte) error {
	c.mu.Lock()
	c.inFlight++
	c.puts++
	if c.inFlight > c.maxPuts {
		c.maxPuts = c.inFlight
	}
	delay := c.putDelay
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	w, err := c.worker(addr)
	if err != nil {
		return err
	}
	w.chunks[chunkID(fileID, index)] = append([]byte(nil), data...)
	return nil
}

func (c *fakeCluster) Get(_ context.Context, addr, fileID string, index int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.worker(addr)
	if err != nil {
		return nil, err
	}
	data, ok := w.chunks[chunkID(fileID, index)]
	if !ok {
		return nil, workerclient.ErrChunkNotFound
	}
	return data, nil
}

func (c *fakeCluster) DeleteAll(_ context.Context, addr, fileID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, err := c.worker(addr)
	if err != nil {
		return err
	}
	for k := range w.chunks {
		if len(k) > len(fileID) && k[:len(fileID)+1] == fileID+"/" {
			delete(w.chunks, k)
		}
	}
	return nil
}
