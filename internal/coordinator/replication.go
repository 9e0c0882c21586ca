package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// Replicator pushes extra copies of placed chunks in the background
type Replicator struct {
	store       metadata.Store
	client      workerclient.Client
	mirror      *LocationMirror
	metrics     *metrics.Metrics
	events      *queue.Events
	logger      *logging.Logger
	factor      int
	maxInFlight int

	// jobs run on baseCtx, not on the request that started them
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewReplicator creates a replicator. factor counts the primary.
func NewReplicator(baseCtx context.Context, store metadata.Store, client workerclient.Client, mirror *LocationMirror, factor, maxInFlight int, m *metrics.Metrics, events *queue.Events, logger *logging.Logger) *Replicator {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Replicator{
		store:       store,
		client:      client,
		mirror:      mirror,
		metrics:     m,
		events:      events,
		logger:      logger.WithComponent("replication"),
		factor:      factor,
		maxInFlight: maxInFlight,
		baseCtx:     baseCtx,
	}
}

// ReplicationJob is the background replication of one file
type ReplicationJob struct {
	FileID string
	done   chan struct{}

	mu       sync.Mutex
	replicas map[int]int
}

// Wait blocks until every chunk of the job finished
func (j *ReplicationJob) Wait() {
	<-j.done
}

// Done is closed when the job finished
func (j *ReplicationJob) Done() <-chan struct{} {
	return j.done
}

// Replicas returns how many replicas chunk index gained
func (j *ReplicationJob) Replicas(index int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.replicas[index]
}

// ReplicateFile starts replicating every placed chunk of res. At most
// maxInFlight chunks of the file replicate at once.
func (r *Replicator) ReplicateFile(res *PlacementResult) *ReplicationJob {
	job := &ReplicationJob{FileID: res.FileID, done: make(chan struct{}), replicas: make(map[int]int)}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(job.done)

		sem := make(chan struct{}, r.maxInFlight)
		var wg sync.WaitGroup
		for i, chunk := range res.Chunks {
			index := i + 1
			if !res.Placed(index) {
				continue
			}
			select {
			case sem <- struct{}{}:
			case <-r.baseCtx.Done():
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(index int, chunk []byte) {
				defer wg.Done()
				defer func() { <-sem }()
				n := r.Replicate(r.baseCtx, res.FileID, index, chunk, res.Active)
				job.mu.Lock()
				job.replicas[index] = n
				job.mu.Unlock()
			}(index, chunk)
		}
		wg.Wait()
	}()
	return job
}

// Replicate pushes a chunk to factor-1 workers at offsets 1, 2, ... from its
// primary within active. Targets equal to the primary or already chosen are
// skipped and do not count. It returns the number of replicas that landed.
func (r *Replicator) Replicate(ctx context.Context, fileID string, index int, data []byte, active []string) int {
	primary, ok := r.mirror.Primary(fileID, index)
	if !ok {
		r.logger.Warn("No primary recorded, skipping replication", "file_id", fileID, "chunk_index", index)
		return 0
	}
	pos := -1
	for i, a := range active {
		if a == primary {
			pos = i
			break
		}
	}
	if pos < 0 {
		r.logger.Warn("Primary not in active set, skipping replication", "file_id", fileID, "chunk_index", index, "primary", primary)
		return 0
	}

	if err := r.store.ClearReplicationAttempts(ctx, fileID, index); err != nil {
		r.logger.Error("Failed to clear replication attempts", "file_id", fileID, "chunk_index", index, "error", err)
	}

	chosen := map[string]bool{primary: true}
	replicas := 0
	for attempt := 1; attempt < r.factor; attempt++ {
		target := active[(pos+attempt)%len(active)]
		if chosen[target] {
			continue
		}
		chosen[target] = true

		r.metrics.ReplicationStarted()
		err := r.client.Put(ctx, target, fileID, index, data)
		r.metrics.ReplicationDone()
		r.metrics.RecordWorkerRequest("put", err)

		if r.record(ctx, fileID, index, target, models.SourceReplication, models.RoleReplica, err) {
			replicas++
		}
	}
	return replicas
}

// record logs one push as an attempt row and, on success, a location.
// Recovery shares it. It reports whether the push landed.
func (r *Replicator) record(ctx context.Context, fileID string, index int, target string, source models.AttemptSource, role models.ChunkRole, pushErr error) bool {
	status := models.AttemptSuccess
	if pushErr != nil {
		status = models.AttemptFailure
		r.logger.Warn("Replica push failed", "file_id", fileID, "chunk_index", index, "datanode", target, "source", source, "error", pushErr)
	}

	attempt := models.ReplicationAttempt{
		FileID:        fileID,
		ChunkIndex:    index,
		WorkerAddress: target,
		Status:        status,
		Source:        source,
		AttemptedAt:   time.Now().UTC(),
	}
	if err := r.store.AddReplicationAttempt(ctx, attempt); err != nil {
		r.logger.Error("Failed to record replication attempt", "file_id", fileID, "chunk_index", index, "error", err)
	}
	r.metrics.RecordReplication(string(source), string(status))
	r.events.ChunkReplicated(attempt)

	if pushErr != nil {
		return false
	}
	loc := models.ChunkLocation{FileID: fileID, ChunkIndex: index, WorkerAddress: target, Role: role}
	if err := r.store.AddChunkLocation(ctx, loc); err != nil {
		r.logger.Error("Failed to record chunk location", "file_id", fileID, "chunk_index", index, "datanode", target, "error", err)
		return false
	}
	r.mirror.Add(fileID, index, target)
	r.logger.Debug("Replica stored", "file_id", fileID, "chunk_index", index, "datanode", target, "source", source)
	return true
}

// Wait blocks until every started job finished
func (r *Replicator) Wait() {
	r.wg.Wait()
}
