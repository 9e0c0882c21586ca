// Package registry keeps datanodes registered in etcd under a lease and lets
// the namenode discover them.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// StatsSource reports what a datanode stores
type StatsSource interface {
	Stats() (chunks int, bytes int64, err error)
}

// NodeRegistration keeps one datanode record alive in etcd
type NodeRegistration struct {
	etcdClient     *clientv3.Client
	stats          StatsSource
	logger         *logging.Logger
	updateInterval time.Duration

	mu       sync.Mutex
	leaseID  clientv3.LeaseID
	nodeInfo models.NodeInfo
}

// NewNodeRegistration creates a registration. stats may be nil.
func NewNodeRegistration(etcdClient *clientv3.Client, nodeInfo models.NodeInfo, stats StatsSource, logger *logging.Logger) *NodeRegistration {
	return &NodeRegistration{
		etcdClient:     etcdClient,
		nodeInfo:       nodeInfo,
		stats:          stats,
		logger:         logger.WithComponent("registry"),
		updateInterval: 30 * time.Second,
	}
}

func nodeKey(id string) string {
	return utils.NodePrefix + id
}

// Register grants a lease, writes the node record and keeps the lease alive until ctx is done
func (r *NodeRegistration) Register(ctx context.Context) error {
	lease, err := r.etcdClient.Grant(ctx, utils.NodeLeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	r.mu.Lock()
	r.leaseID = lease.ID
	r.mu.Unlock()

	if err := r.put(ctx); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}

	r.logger.Info("Node registered",
		"node_id", r.nodeInfo.ID,
		"http_address", r.nodeInfo.HTTPAddress,
		"grpc_address", r.nodeInfo.GRPCAddress,
		"lease_id", int64(lease.ID),
		"ttl", utils.NodeLeaseTTL,
	)

	ch, err := r.etcdClient.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}
	go r.keepAlive(ctx, ch)
	return nil
}

// put refreshes stats and writes the record under the current lease
func (r *NodeRegistration) put(ctx context.Context) error {
	r.mu.Lock()
	if r.stats != nil {
		if chunks, size, err := r.stats.Stats(); err == nil {
			r.nodeInfo.Chunks = chunks
			r.nodeInfo.Bytes = size
		}
	}
	r.nodeInfo.UpdatedAt = time.Now().UTC()
	info := r.nodeInfo
	leaseID := r.leaseID
	r.mu.Unlock()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal node info: %w", err)
	}
	_, err = r.etcdClient.Put(ctx, nodeKey(info.ID), string(data), clientv3.WithLease(leaseID))
	return err
}

func (r *NodeRegistration) keepAlive(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	ticker := time.NewTicker(r.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Keep-alive stopped")
			return

		case ka, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("Keep-alive channel closed, re-registering")
				time.Sleep(2 * time.Second)
				if err := r.Register(ctx); err != nil {
					r.logger.Error("Failed to re-register", "error", err)
				}
				return
			}
			r.logger.Debug("Heartbeat sent", "lease_id", int64(ka.ID), "ttl", ka.TTL)

		case <-ticker.C:
			if err := r.put(ctx); err != nil {
				r.logger.Error("Failed to update node record", "error", err)
			}
		}
	}
}

// SetStatus updates the advertised status
func (r *NodeRegistration) SetStatus(ctx context.Context, status string) error {
	r.mu.Lock()
	r.nodeInfo.Status = status
	r.mu.Unlock()
	return r.put(ctx)
}

// Deregister deletes the record and revokes the lease
func (r *NodeRegistration) Deregister(ctx context.Context) error {
	r.mu.Lock()
	id, leaseID := r.nodeInfo.ID, r.leaseID
	r.mu.Unlock()

	r.logger.Info("Deregistering node", "node_id", id)

	_, err := r.etcdClient.Delete(ctx, nodeKey(id))
	if err != nil {
		r.logger.Error("Failed to delete node key", "error", err)
	}
	if leaseID != 0 {
		if _, rerr := r.etcdClient.Revoke(ctx, leaseID); rerr != nil {
			r.logger.Error("Failed to revoke lease", "error", rerr)
		}
	}
	return err
}
