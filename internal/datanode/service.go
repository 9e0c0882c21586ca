// Package datanode implements the storage worker: a local chunk store behind HTTP and gRPC.
package datanode

import (
	"sync/atomic"

	"github.com/soltixdb/chunkfs/internal/chunkstore"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metrics"
)

// Service is the transport-independent worker. Both the HTTP routes and the
// gRPC server delegate to it.
type Service struct {
	store    *chunkstore.DiskStore
	identity *Identity
	logger   *logging.Logger
	metrics  *metrics.DataNodeMetrics
	active   atomic.Bool
}

// NewService creates an active worker
func NewService(store *chunkstore.DiskStore, identity *Identity, logger *logging.Logger, m *metrics.DataNodeMetrics) *Service {
	s := &Service{
		store:    store,
		identity: identity,
		logger:   logger.WithComponent("datanode"),
		metrics:  m,
	}
	s.SetActive(true)
	return s
}

// NodeID returns the persisted node id
func (s *Service) NodeID() string {
	return s.identity.NodeID
}

// IsActive reports the self-reported status
func (s *Service) IsActive() bool {
	return s.active.Load()
}

// SetActive changes the self-reported status. An inactive node keeps serving
// reads and writes but fails liveness probes.
func (s *Service) SetActive(active bool) {
	if prev := s.active.Swap(active); prev != active {
		s.logger.Info("Status changed", "active", active)
	}
	s.metrics.SetActive(active)
}

// PutChunk stores a chunk
func (s *Service) PutChunk(fileID string, chunkIndex int, data []byte) error {
	err := s.store.Put(fileID, chunkIndex, data)
	s.metrics.RecordOp("put", err, len(data), 0)
	if err != nil {
		s.logger.Error("Failed to store chunk", "file_id", fileID, "chunk_index", chunkIndex, "error", err)
		return err
	}
	s.logger.Debug("Stored chunk", "file_id", fileID, "chunk_index", chunkIndex, "bytes", len(data))
	return nil
}

// GetChunk returns a chunk. Missing chunks yield chunkstore.ErrChunkNotFound.
func (s *Service) GetChunk(fileID string, chunkIndex int) ([]byte, error) {
	data, err := s.store.Get(fileID, chunkIndex)
	s.metrics.RecordOp("get", err, 0, len(data))
	return data, err
}

// DeleteChunks removes every chunk of a file
func (s *Service) DeleteChunks(fileID string) (int, error) {
	n, err := s.store.DeleteAll(fileID)
	s.metrics.RecordOp("delete", err, 0, 0)
	if err != nil {
		s.logger.Error("Failed to delete chunks", "file_id", fileID, "error", err)
		return 0, err
	}
	s.logger.Info("Deleted chunks", "file_id", fileID, "count", n)
	return n, nil
}

// Stats reports stored chunk count and bytes
func (s *Service) Stats() (int, int64, error) {
	return s.store.Stats()
}
