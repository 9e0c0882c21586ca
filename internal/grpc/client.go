package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/workerclient"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client implements workerclient.Client over pooled gRPC connections
type Client struct {
	pool    *ConnectionPool
	timeout time.Duration
}

var _ workerclient.Client = (*Client)(nil)

// NewClient creates a client with its own connection pool
func NewClient(logger *logging.Logger, timeout time.Duration) *Client {
	return &Client{pool: NewConnectionPool(logger.WithComponent("grpc-pool")), timeout: timeout}
}

// Close releases pooled connections
func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) invoke(ctx context.Context, addr, method string, in, out any) error {
	conn, err := c.pool.GetConnection(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", workerclient.ErrWorkerUnavailable, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := conn.Invoke(ctx, method, in, out); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s: %w", addr, workerclient.ErrChunkNotFound)
		}
		return fmt.Errorf("%w: %s %s: %v", workerclient.ErrWorkerUnavailable, addr, method, err)
	}
	return nil
}

func (c *Client) Probe(ctx context.Context, addr string) (workerclient.ProbeResult, error) {
	var reply ProbeReply
	if err := c.invoke(ctx, addr, MethodProbe, &ProbeRequest{}, &reply); err != nil {
		return workerclient.ProbeResult{}, err
	}
	return workerclient.ProbeResult{NodeID: reply.NodeID, Active: reply.Active}, nil
}

func (c *Client) Put(ctx context.Context, addr, fileID string, chunkIndex int, data []byte) error {
	return c.invoke(ctx, addr, MethodPut, &PutRequest{FileID: fileID, ChunkIndex: chunkIndex, Data: data}, &PutReply{})
}

func (c *Client) Get(ctx context.Context, addr, fileID string, chunkIndex int) ([]byte, error) {
	var reply GetReply
	if err := c.invoke(ctx, addr, MethodGet, &GetRequest{FileID: fileID, ChunkIndex: chunkIndex}, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}

func (c *Client) DeleteAll(ctx context.Context, addr, fileID string) error {
	return c.invoke(ctx, addr, MethodDeleteAll, &DeleteAllRequest{FileID: fileID}, &DeleteAllReply{})
}
