package coordinator

import (
	"context"
	"fmt"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// PlacementResult describes where the primaries of a file went
type PlacementResult struct {
	FileID string
	Chunks [][]byte
	// Active is the snapshot placement used; replication targets come from it too
	Active []string
	// Primaries[i] is the worker holding chunk i+1, "" if its push failed
	Primaries []string
	Failed    []int
}

// Placed reports whether chunk index (1-based) has a primary
func (r *PlacementResult) Placed(index int) bool {
	return index >= 1 && index <= len(r.Primaries) && r.Primaries[index-1] != ""
}

// Placer pushes primaries round robin over the active workers
type Placer struct {
	store   metadata.Store
	client  workerclient.Client
	workers *WorkerSet
	mirror  *LocationMirror
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewPlacer creates a placer
func NewPlacer(store metadata.Store, client workerclient.Client, workers *WorkerSet, mirror *LocationMirror, m *metrics.Metrics, logger *logging.Logger) *Placer {
	return &Placer{
		store:   store,
		client:  client,
		workers: workers,
		mirror:  mirror,
		metrics: m,
		logger:  logger.WithComponent("placement"),
	}
}

// Place splits data into chunkCount chunks and pushes chunk i to active[i mod len(active)]
// in index order. A failed push is not retried and does not stop the others; the
// result then carries the placed subset and the error wraps ErrUploadRejected.
func (p *Placer) Place(ctx context.Context, fileID string, data []byte, chunkCount int) (*PlacementResult, error) {
	if chunkCount < 1 {
		return nil, ErrInvalidChunkCount
	}
	active := p.workers.Active()
	if len(active) == 0 {
		return nil, ErrNoActiveWorkers
	}

	res := &PlacementResult{
		FileID:    fileID,
		Chunks:    SplitChunks(data, chunkCount),
		Active:    active,
		Primaries: make([]string, chunkCount),
	}

	for i, chunk := range res.Chunks {
		index := i + 1
		target := active[i%len(active)]

		err := p.client.Put(ctx, target, fileID, index, chunk)
		p.metrics.RecordPlacement(err)
		p.metrics.RecordWorkerRequest("put", err)
		if err != nil {
			p.logger.Warn("Primary push failed", "file_id", fileID, "chunk_index", index, "datanode", target, "error", err)
			res.Failed = append(res.Failed, index)
			continue
		}

		loc := models.ChunkLocation{FileID: fileID, ChunkIndex: index, WorkerAddress: target, Role: models.RolePrimary}
		if err := p.store.AddChunkLocation(ctx, loc); err != nil {
			return res, fmt.Errorf("record chunk %d of %s: %w", index, fileID, err)
		}
		p.mirror.Add(fileID, index, target)
		res.Primaries[i] = target
		p.logger.Debug("Chunk placed", "file_id", fileID, "chunk_index", index, "datanode", target, "bytes", len(chunk))
	}

	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: chunks %v of %s", ErrUploadRejected, res.Failed, fileID)
	}
	return res, nil
}
