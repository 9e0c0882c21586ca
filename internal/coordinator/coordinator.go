// Package coordinator places, replicates, monitors, recovers and reads chunks
// on behalf of the namenode.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// Config tunes the coordinator
type Config struct {
	ReplicationFactor int
	MaxInFlight       int
	ProbeInterval     time.Duration
	ProbeTimeout      time.Duration
	AllowPartial      bool
}

// Deps are the collaborators of a coordinator. Metrics and Events may be nil.
type Deps struct {
	Store   metadata.Store
	Client  workerclient.Client
	Source  registry.AddressSource
	Metrics *metrics.Metrics
	Events  *queue.Events
	Logger  *logging.Logger
}

// Coordinator owns the shared in-memory state and the engines built on it
type Coordinator struct {
	Workers    *WorkerSet
	Mirror     *LocationMirror
	Placer     *Placer
	Replicator *Replicator
	Monitor    *HealthMonitor
	Reconciler *Reconciler
	Reader     *Reader

	logger *logging.Logger
	cancel context.CancelFunc
}

// New wires a coordinator. Background work runs on a context derived from
// ctx and ends at Stop.
func New(ctx context.Context, cfg Config, deps Deps) *Coordinator {
	ctx, cancel := context.WithCancel(ctx)
	workers := NewWorkerSet(nil)
	mirror := NewLocationMirror()
	replicator := NewReplicator(ctx, deps.Store, deps.Client, mirror, cfg.ReplicationFactor, cfg.MaxInFlight, deps.Metrics, deps.Events, deps.Logger)

	return &Coordinator{
		Workers:    workers,
		Mirror:     mirror,
		Placer:     NewPlacer(deps.Store, deps.Client, workers, mirror, deps.Metrics, deps.Logger),
		Replicator: replicator,
		Monitor:    NewHealthMonitor(deps.Source, deps.Client, deps.Store, workers, cfg.ProbeInterval, cfg.ProbeTimeout, deps.Metrics, deps.Events, deps.Logger),
		Reconciler: NewReconciler(deps.Store, deps.Client, replicator, deps.Metrics, deps.Events, deps.Logger),
		Reader:     NewReader(deps.Store, deps.Client, cfg.AllowPartial, deps.Metrics, deps.Logger),
		logger:     deps.Logger.WithComponent("coordinator"),
		cancel:     cancel,
	}
}

// Start runs the first health sweep and starts the monitor loop
func (c *Coordinator) Start(ctx context.Context) {
	c.Monitor.Start(ctx)
	c.logger.Info("Coordinator started", "active_datanodes", len(c.Workers.Active()), "known_datanodes", len(c.Workers.Known()))
}

// Upload places data and starts its replication. On ErrUploadRejected the
// result and job still cover the chunks that were placed.
func (c *Coordinator) Upload(ctx context.Context, fileID string, data []byte, chunkCount int) (*PlacementResult, *ReplicationJob, error) {
	res, err := c.Placer.Place(ctx, fileID, data, chunkCount)
	if err != nil && !errors.Is(err, ErrUploadRejected) {
		return res, nil, err
	}
	return res, c.Replicator.ReplicateFile(res), err
}

// Forget drops cached placement of a deleted file
func (c *Coordinator) Forget(fileID string) {
	c.Mirror.Forget(fileID)
}

// Wait blocks until running replication jobs finished
func (c *Coordinator) Wait() {
	c.Replicator.Wait()
}

// Stop stops the monitor and waits for replication jobs to finish
func (c *Coordinator) Stop() {
	c.Monitor.Stop()
	c.Replicator.Wait()
	c.cancel()
	c.logger.Info("Coordinator stopped")
}
