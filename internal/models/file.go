package models

import "time"

// File is the metadata of an uploaded file. Only DirectoryPath changes after creation.
type File struct {
	ID                string    `json:"id"`
	Name              string    `json:"file_name"`
	ChunkCount        int       `json:"number_of_chunks"`
	ReplicationFactor int       `json:"replication_factor"`
	DirectoryPath     string    `json:"directory_path"`
	UploadTime        time.Time `json:"upload_time"`
}

// ChunkRole tells how a location came to hold a chunk
type ChunkRole string

const (
	RolePrimary   ChunkRole = "primary"
	RoleReplica   ChunkRole = "replica"
	RoleRecovered ChunkRole = "recovered"
)

// ChunkLocation records that a worker holds chunk ChunkIndex (1-based) of a file
type ChunkLocation struct {
	FileID        string    `json:"data_id"`
	ChunkIndex    int       `json:"chunk_id"`
	WorkerAddress string    `json:"datanode_address"`
	Role          ChunkRole `json:"role"`
}

// AttemptStatus is the outcome of a replica push
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailure AttemptStatus = "failure"
)

// AttemptSource distinguishes upload-time replication from recovery
type AttemptSource string

const (
	SourceReplication AttemptSource = "replication"
	SourceRecovery    AttemptSource = "recovery"
)

// ReplicationAttempt is an append-only log row of one replica push
type ReplicationAttempt struct {
	ID            string        `json:"id"`
	FileID        string        `json:"data_id"`
	ChunkIndex    int           `json:"chunk_id"`
	WorkerAddress string        `json:"datanode_address"`
	Status        AttemptStatus `json:"status"`
	Source        AttemptSource `json:"source"`
	AttemptedAt   time.Time     `json:"attempted_at"`
}

// Succeeded reports whether the push landed
func (a ReplicationAttempt) Succeeded() bool {
	return a.Status == AttemptSuccess
}
