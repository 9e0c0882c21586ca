package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEventsPublishTypedPayloads(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()
	events := NewEvents(q, logging.NewNop())

	var workers, replication, recovery, namespace collector
	_ = q.Subscribe(models.SubjectWorkerEvents, workers.handle)
	_ = q.Subscribe(models.SubjectReplicationEvents, replication.handle)
	_ = q.Subscribe(models.SubjectRecoveryEvents, recovery.handle)
	_ = q.Subscribe(models.SubjectNamespaceEvents, namespace.handle)

	events.WorkerChanged("w1:5001", models.WorkerActive, models.WorkerInactive)
	events.ChunkReplicated(models.ReplicationAttempt{FileID: "f", ChunkIndex: 2, WorkerAddress: "w2", Status: models.AttemptSuccess, Source: models.SourceReplication})
	events.Reconciled(&models.RecoveryReport{FileID: "f", Handled: []string{"w1:5001"}, Repaired: []models.RepairedChunk{{ChunkIndex: 1}}})
	events.NamespaceChanged("move_file", "/a", "/b", "f")

	waitFor(t, time.Second, func() bool {
		return workers.count() == 1 && replication.count() == 1 && recovery.count() == 1 && namespace.count() == 1
	})

	var we models.WorkerEvent
	if err := json.Unmarshal(workers.get(0), &we); err != nil {
		t.Fatalf("decode worker event: %v", err)
	}
	assert.Equal(t, "w1:5001", we.Address)
	assert.Equal(t, models.WorkerInactive, we.Current)

	var re models.RecoveryEvent
	_ = json.Unmarshal(recovery.get(0), &re)
	assert.Equal(t, 1, re.Repaired)
	assert.Equal(t, 0, re.Unrepaired)

	var ne models.NamespaceEvent
	_ = json.Unmarshal(namespace.get(0), &ne)
	assert.Equal(t, "move_file", ne.Op)
	assert.Equal(t, "/b", ne.Target)
}

func TestNilEventsIsNoop(t *testing.T) {
	var events *Events
	events.WorkerChanged("w", "", models.WorkerActive)
	events.NamespaceChanged("upload", "/", "", "f")
}

func TestEventsSurvivePublishFailure(t *testing.T) {
	q := newMemoryQueue()
	_ = q.Close()
	events := NewEvents(q, logging.NewNop())
	// closed queue: logged, not raised
	events.NamespaceChanged("upload", "/", "", "f")
}
