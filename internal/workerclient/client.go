// Package workerclient is the namenode's view of a datanode.
package workerclient

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChunkNotFound means the worker answered but holds no such chunk
	ErrChunkNotFound = errors.New("worker: chunk not found")
	// ErrWorkerUnavailable covers timeouts, refused connections and error statuses
	ErrWorkerUnavailable = errors.New("worker: unavailable")
)

// ProbeResult is the answer to a liveness probe
type ProbeResult struct {
	NodeID string
	// Active is the worker's self-reported status. A reachable worker may report inactive.
	Active bool
}

// Client talks to storage workers by address
type Client interface {
	Probe(ctx context.Context, addr string) (ProbeResult, error)
	Put(ctx context.Context, addr, fileID string, chunkIndex int, data []byte) error
	Get(ctx context.Context, addr, fileID string, chunkIndex int) ([]byte, error)
	DeleteAll(ctx context.Context, addr, fileID string) error
}

// effectiveTimeout bounds d by the time left on ctx
func effectiveTimeout(ctx context.Context, d time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return 0, context.DeadlineExceeded
		}
		if d <= 0 || left < d {
			return left, nil
		}
	}
	return d, nil
}
