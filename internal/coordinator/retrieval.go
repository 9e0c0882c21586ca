package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// Reader reassembles files from their chunk locations
type Reader struct {
	store        metadata.Store
	client       workerclient.Client
	metrics      *metrics.Metrics
	logger       *logging.Logger
	allowPartial bool
}

// NewReader creates a reader. With allowPartial an unavailable chunk is
// omitted instead of failing the read.
func NewReader(store metadata.Store, client workerclient.Client, allowPartial bool, m *metrics.Metrics, logger *logging.Logger) *Reader {
	return &Reader{
		store:        store,
		client:       client,
		metrics:      m,
		logger:       logger.WithComponent("retrieval"),
		allowPartial: allowPartial,
	}
}

// candidates orders the workers to try for one chunk: the recorded primary,
// then successful replica targets, then any other location
func candidates(index int, locs []models.ChunkLocation, attempts []models.ReplicationAttempt) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	for _, l := range locs {
		if l.ChunkIndex == index && l.Role == models.RolePrimary {
			add(l.WorkerAddress)
		}
	}
	for _, a := range attempts {
		if a.ChunkIndex == index && a.Succeeded() {
			add(a.WorkerAddress)
		}
	}
	for _, l := range locs {
		if l.ChunkIndex == index {
			add(l.WorkerAddress)
		}
	}
	return out
}

// Read returns the bytes of fileID, chunk 1 first
func (r *Reader) Read(ctx context.Context, fileID string) ([]byte, error) {
	data, fallbacks, err := r.read(ctx, fileID)
	r.metrics.RecordRead(err, fallbacks)
	return data, err
}

func (r *Reader) read(ctx context.Context, fileID string) ([]byte, int, error) {
	f, err := r.store.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return nil, 0, err
	}

	locs, err := r.store.ListChunkLocations(ctx, fileID)
	if err != nil {
		return nil, 0, err
	}
	if len(locs) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoChunksRecorded, fileID)
	}
	attempts, err := r.store.ListReplicationAttempts(ctx, fileID)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	fallbacks := 0
	var missing []int

	for index := 1; index <= f.ChunkCount; index++ {
		chunk, tried, err := r.fetch(ctx, fileID, index, candidates(index, locs, attempts))
		if err != nil {
			if !r.allowPartial {
				return nil, fallbacks, fmt.Errorf("%w: chunk %d of %s", ErrChunkUnavailable, index, fileID)
			}
			r.logger.Warn("Omitting unavailable chunk", "file_id", fileID, "chunk_index", index, "error", err)
			missing = append(missing, index)
			continue
		}
		if tried > 1 {
			fallbacks++
		}
		buf.Write(chunk)
	}

	if len(missing) > 0 && buf.Len() == 0 {
		return nil, fallbacks, fmt.Errorf("%w: %s", ErrReassemblyFailed, fileID)
	}
	return buf.Bytes(), fallbacks, nil
}

// fetch tries workers in order and returns the first chunk served and how many workers it took
func (r *Reader) fetch(ctx context.Context, fileID string, index int, workers []string) ([]byte, int, error) {
	lastErr := fmt.Errorf("no location recorded")
	for i, addr := range workers {
		data, err := r.client.Get(ctx, addr, fileID, index)
		r.metrics.RecordWorkerRequest("get", err)
		if err == nil {
			return data, i + 1, nil
		}
		r.logger.Debug("Chunk fetch failed", "file_id", fileID, "chunk_index", index, "datanode", addr, "error", err)
		lastErr = err
	}
	return nil, len(workers), lastErr
}
