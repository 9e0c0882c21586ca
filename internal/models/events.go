package models

import "time"

// Event subjects published on the queue
const (
	SubjectWorkerEvents      = "chunkfs.events.worker"
	SubjectReplicationEvents = "chunkfs.events.replication"
	SubjectRecoveryEvents    = "chunkfs.events.recovery"
	SubjectNamespaceEvents   = "chunkfs.events.namespace"
)

// WorkerEvent is published when a worker changes state
type WorkerEvent struct {
	Address  string      `json:"datanode_address"`
	Previous WorkerState `json:"previous,omitempty"`
	Current  WorkerState `json:"current"`
	At       time.Time   `json:"at"`
}

// ReplicationEvent is published for every replica push
type ReplicationEvent struct {
	FileID     string        `json:"data_id"`
	ChunkIndex int           `json:"chunk_id"`
	Worker     string        `json:"datanode_address"`
	Status     AttemptStatus `json:"status"`
	Source     AttemptSource `json:"source"`
	At         time.Time     `json:"at"`
}

// RecoveryEvent is published at the end of a reconcile pass
type RecoveryEvent struct {
	FileID     string    `json:"data_id"`
	Handled    []string  `json:"handled_datanodes"`
	Repaired   int       `json:"repaired"`
	Unrepaired int       `json:"unrepaired"`
	At         time.Time `json:"at"`
}

// NamespaceEvent is published for file and folder mutations
type NamespaceEvent struct {
	Op     string    `json:"op"` // upload, delete_file, delete_folder, move_file, ...
	Path   string    `json:"path"`
	Target string    `json:"target,omitempty"`
	FileID string    `json:"data_id,omitempty"`
	At     time.Time `json:"at"`
}
