package models

import "time"

// WorkerState is the liveness classification of a worker
type WorkerState string

const (
	WorkerActive   WorkerState = "Active"
	WorkerInactive WorkerState = "Inactive"
)

// WorkerStatus is the latest probe result for a worker, upserted every sweep
type WorkerStatus struct {
	Address   string      `json:"datanode_address"`
	Status    WorkerState `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FailureMarker means recovery for the current outage of Address was already claimed
type FailureMarker struct {
	Address  string    `json:"datanode_address"`
	MarkedAt time.Time `json:"marked_at"`
}

// NodeInfo is the registration record a datanode keeps alive in etcd
type NodeInfo struct {
	ID          string    `json:"id"`
	HTTPAddress string    `json:"http_address"`
	GRPCAddress string    `json:"grpc_address"`
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Chunks      int       `json:"chunks"`
	Bytes       int64     `json:"bytes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AddressFor returns the address matching a worker client transport
func (n NodeInfo) AddressFor(transport string) string {
	if transport == "grpc" {
		return n.GRPCAddress
	}
	return n.HTTPAddress
}
