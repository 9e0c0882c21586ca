package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
)

const publishTimeout = 2 * time.Second

// Events publishes typed cluster events. Publishing never fails the caller;
// errors are logged. A nil *Events is valid and publishes nothing.
type Events struct {
	pub    Publisher
	logger *logging.Logger
}

// NewEvents wraps a publisher
func NewEvents(pub Publisher, logger *logging.Logger) *Events {
	return &Events{pub: pub, logger: logger.WithComponent("events")}
}

func (e *Events) publish(subject string, v interface{}) {
	if e == nil || e.pub == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("Failed to encode event", "subject", subject, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.pub.Publish(ctx, subject, data); err != nil {
		e.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// WorkerChanged publishes a worker status transition
func (e *Events) WorkerChanged(address string, previous, current models.WorkerState) {
	e.publish(models.SubjectWorkerEvents, models.WorkerEvent{
		Address:  address,
		Previous: previous,
		Current:  current,
		At:       time.Now().UTC(),
	})
}

// ChunkReplicated publishes the outcome of one replica push
func (e *Events) ChunkReplicated(a models.ReplicationAttempt) {
	e.publish(models.SubjectReplicationEvents, models.ReplicationEvent{
		FileID:     a.FileID,
		ChunkIndex: a.ChunkIndex,
		Worker:     a.WorkerAddress,
		Status:     a.Status,
		Source:     a.Source,
		At:         a.AttemptedAt,
	})
}

// Reconciled publishes the summary of a recovery pass
func (e *Events) Reconciled(r *models.RecoveryReport) {
	e.publish(models.SubjectRecoveryEvents, models.RecoveryEvent{
		FileID:     r.FileID,
		Handled:    r.Handled,
		Repaired:   len(r.Repaired),
		Unrepaired: len(r.Unrepaired),
		At:         time.Now().UTC(),
	})
}

// NamespaceChanged publishes a file or folder mutation
func (e *Events) NamespaceChanged(op, path, target, fileID string) {
	e.publish(models.SubjectNamespaceEvents, models.NamespaceEvent{
		Op:     op,
		Path:   path,
		Target: target,
		FileID: fileID,
		At:     time.Now().UTC(),
	})
}
