package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// Reconciler restores replica coverage of a file lost to inactive workers
type Reconciler struct {
	store      metadata.Store
	client     workerclient.Client
	replicator *Replicator
	metrics    *metrics.Metrics
	events     *queue.Events
	logger     *logging.Logger
}

// NewReconciler creates a reconciler. Outcomes are recorded through replicator.
func NewReconciler(store metadata.Store, client workerclient.Client, replicator *Replicator, m *metrics.Metrics, events *queue.Events, logger *logging.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		client:     client,
		replicator: replicator,
		metrics:    m,
		events:     events,
		logger:     logger.WithComponent("recovery"),
	}
}

// ClearRecoveredMarkers drops the failure marker of every worker now Active,
// so its next outage triggers a fresh recovery
func (r *Reconciler) ClearRecoveredMarkers(ctx context.Context, statuses []models.WorkerStatus) error {
	for _, st := range statuses {
		if st.Status != models.WorkerActive {
			continue
		}
		handled, err := r.store.IsFailureHandled(ctx, st.Address)
		if err != nil {
			return err
		}
		if !handled {
			continue
		}
		if err := r.store.ClearFailureHandled(ctx, st.Address); err != nil {
			return err
		}
		r.logger.Info("Datanode back online, failure marker cleared", "datanode", st.Address)
	}
	return nil
}

// Reconcile copies the chunks of fileID held by inactive workers onto active
// workers lacking them. Inactive workers are handled in address order; the
// first one already claimed stops the pass. Best effort: unrepaired chunks are
// reported and a later call may fill them.
func (r *Reconciler) Reconcile(ctx context.Context, fileID string) (*models.RecoveryReport, error) {
	report := &models.RecoveryReport{FileID: fileID}

	statuses, err := r.store.ListWorkerStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worker statuses: %w", err)
	}
	if err := r.ClearRecoveredMarkers(ctx, statuses); err != nil {
		return nil, fmt.Errorf("clear failure markers: %w", err)
	}

	var inactive, active []string
	for _, st := range statuses {
		switch st.Status {
		case models.WorkerInactive:
			inactive = append(inactive, st.Address)
		case models.WorkerActive:
			active = append(active, st.Address)
		}
	}
	sort.Strings(inactive)
	sort.Strings(active)
	report.InactiveWorkers = inactive

	if len(inactive) == 0 {
		report.NoActionNeeded = true
		r.metrics.RecordRecovery("no_action", 0)
		return report, nil
	}

	for _, lost := range inactive {
		claimed, err := r.store.MarkFailureHandled(ctx, lost)
		if err != nil {
			return nil, fmt.Errorf("mark %s handled: %w", lost, err)
		}
		if !claimed {
			r.logger.Info("Outage already handled, stopping pass", "datanode", lost, "file_id", fileID)
			report.AlreadyHandled = append(report.AlreadyHandled, lost)
			break
		}
		report.Handled = append(report.Handled, lost)

		if err := r.recoverWorker(ctx, fileID, lost, active, report); err != nil {
			return nil, err
		}
	}

	outcome := "repaired"
	switch {
	case len(report.Unrepaired) > 0:
		outcome = "partial"
	case len(report.Repaired) == 0:
		outcome = "nothing_to_repair"
	}
	r.metrics.RecordRecovery(outcome, len(report.Repaired))
	r.events.Reconciled(report)
	r.logger.Info("Reconcile finished",
		"file_id", fileID,
		"handled", len(report.Handled),
		"repaired", len(report.Repaired),
		"unrepaired", len(report.Unrepaired),
	)
	return report, nil
}

// heldChunks returns the ascending chunk indexes lost held for fileID, as a
// location or as a successful replica target
func (r *Reconciler) heldChunks(ctx context.Context, fileID, lost string) ([]int, error) {
	set := make(map[int]bool)

	locs, err := r.store.ListChunkLocations(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list chunk locations: %w", err)
	}
	for _, l := range locs {
		if l.WorkerAddress == lost {
			set[l.ChunkIndex] = true
		}
	}

	attempts, err := r.store.ListReplicationAttempts(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list replication attempts: %w", err)
	}
	for _, a := range attempts {
		if a.WorkerAddress == lost && a.Succeeded() {
			set[a.ChunkIndex] = true
		}
	}

	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

func (r *Reconciler) recoverWorker(ctx context.Context, fileID, lost string, active []string, report *models.RecoveryReport) error {
	chunks, err := r.heldChunks(ctx, fileID, lost)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	locs, err := r.store.ListChunkLocations(ctx, fileID)
	if err != nil {
		return fmt.Errorf("list chunk locations: %w", err)
	}
	holds := make(map[chunkKey]map[string]bool)
	for _, l := range locs {
		k := chunkKey{fileID, l.ChunkIndex}
		if holds[k] == nil {
			holds[k] = make(map[string]bool)
		}
		holds[k][l.WorkerAddress] = true
	}

	for _, index := range chunks {
		k := chunkKey{fileID, index}
		if r.repairChunk(ctx, fileID, index, lost, active, holds[k], report) {
			if holds[k] == nil {
				holds[k] = make(map[string]bool)
			}
			holds[k][report.Repaired[len(report.Repaired)-1].Destination] = true
		}
	}
	return nil
}

// repairChunk scans active in order. The first worker without the chunk gets
// a copy fetched from the next active worker (wrapping); on failure the scan
// goes on. It stops at the first success.
func (r *Reconciler) repairChunk(ctx context.Context, fileID string, index int, lost string, active []string, holders map[string]bool, report *models.RecoveryReport) bool {
	reason := "no active datanodes"
	gaps := 0

	for i, gap := range active {
		if holders[gap] {
			continue
		}
		gaps++
		source := active[(i+1)%len(active)]
		if source == gap {
			reason = "no source datanode"
			continue
		}

		data, err := r.client.Get(ctx, source, fileID, index)
		r.metrics.RecordWorkerRequest("get", err)
		if err != nil {
			r.logger.Warn("Recovery fetch failed", "file_id", fileID, "chunk_index", index, "source", source, "error", err)
			reason = fmt.Sprintf("fetch from %s failed", source)
			continue
		}

		err = r.client.Put(ctx, gap, fileID, index, data)
		r.metrics.RecordWorkerRequest("put", err)
		if !r.replicator.record(ctx, fileID, index, gap, models.SourceRecovery, models.RoleRecovered, err) {
			reason = fmt.Sprintf("push to %s failed", gap)
			continue
		}

		report.Repaired = append(report.Repaired, models.RepairedChunk{
			ChunkIndex:  index,
			LostWorker:  lost,
			Source:      source,
			Destination: gap,
		})
		return true
	}

	if len(active) > 0 && gaps == 0 {
		// every active worker already holds it
		return false
	}
	report.Unrepaired = append(report.Unrepaired, models.UnrepairedChunk{ChunkIndex: index, LostWorker: lost, Reason: reason})
	return false
}
