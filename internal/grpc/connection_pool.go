package grpc

import (
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/utils"
)

// ConnectionPool keeps one client connection per datanode address
type ConnectionPool struct {
	mu     sync.RWMutex
	conns  map[string]*grpc.ClientConn
	logger *logging.Logger

	healthCheckInterval time.Duration
	stopCh              chan struct{}
	wg                  sync.WaitGroup
	closeOnce           sync.Once
}

// NewConnectionPool creates a pool and starts its health checker
func NewConnectionPool(logger *logging.Logger) *ConnectionPool {
	return newConnectionPool(logger, utils.GRPCHealthCheckInterval)
}

func newConnectionPool(logger *logging.Logger, interval time.Duration) *ConnectionPool {
	pool := &ConnectionPool{
		conns:               make(map[string]*grpc.ClientConn),
		logger:              logger,
		healthCheckInterval: interval,
		stopCh:              make(chan struct{}),
	}
	pool.wg.Add(1)
	go pool.healthCheckLoop()
	return pool
}

func usable(conn *grpc.ClientConn) bool {
	state := conn.GetState()
	return state != connectivity.TransientFailure && state != connectivity.Shutdown
}

// GetConnection gets or creates a connection to address
func (p *ConnectionPool) GetConnection(address string) (*grpc.ClientConn, error) {
	p.mu.RLock()
	conn, exists := p.conns[address]
	p.mu.RUnlock()
	if exists && usable(conn) {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, exists := p.conns[address]; exists {
		if usable(conn) {
			return conn, nil
		}
		_ = conn.Close()
		delete(p.conns, address)
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(CodecName),
			grpc.MaxCallRecvMsgSize(utils.GRPCMaxMessageSize),
			grpc.MaxCallSendMsgSize(utils.GRPCMaxMessageSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	p.conns[address] = conn
	p.logger.Debug("Created new gRPC connection", "address", address)
	return conn, nil
}

func (p *ConnectionPool) healthCheckLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkConnections()
		}
	}
}

// checkConnections drops connections in a failure state; the next call redials
func (p *ConnectionPool) checkConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for address, conn := range p.conns {
		if usable(conn) {
			continue
		}
		state := conn.GetState()
		_ = conn.Close()
		delete(p.conns, address)
		p.logger.Warn("Removed unhealthy gRPC connection", "address", address, "state", state.String())
	}
}

// GetConnectionCount returns the number of pooled connections
func (p *ConnectionPool) GetConnectionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Close closes all connections and stops the health checker
func (p *ConnectionPool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()

		p.mu.Lock()
		defer p.mu.Unlock()
		for address, conn := range p.conns {
			if err := conn.Close(); err != nil {
				p.logger.Warn("Failed to close gRPC connection", "address", address, "error", err)
			}
		}
		p.conns = make(map[string]*grpc.ClientConn)
	})
}
