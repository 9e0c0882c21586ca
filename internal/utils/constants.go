package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// ShutdownTimeout bounds graceful shutdown of HTTP servers and background jobs
	ShutdownTimeout = 10 * time.Second

	// WorkerDeleteTimeout bounds the fan-out of chunk deletes to every worker
	WorkerDeleteTimeout = 10 * time.Second

	// MetadataOpTimeout bounds metadata writes made outside a request context
	MetadataOpTimeout = 5 * time.Second
)

// gRPC
const (
	// GRPCRequestTimeout is the default timeout for gRPC requests
	GRPCRequestTimeout = 5 * time.Second

	// GRPCHealthCheckInterval is the interval between health checks for gRPC connections
	GRPCHealthCheckInterval = 30 * time.Second

	// GRPCMaxMessageSize caps a single chunk on the wire
	GRPCMaxMessageSize = 64 * 1024 * 1024
)

// =============================================================================
// Registry Constants
// =============================================================================

const (
	// NodeLeaseTTL is the etcd lease TTL in seconds for datanode registrations
	NodeLeaseTTL = 10

	// NodePrefix is the etcd key prefix of datanode registrations
	NodePrefix = "/chunkfs/nodes/"
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of event queue
type QueueType string

const (
	// QueueTypeNone disables event publishing
	QueueTypeNone QueueType = "none"

	// QueueTypeNATS represents NATS JetStream
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents the in-process queue
	QueueTypeMemory QueueType = "memory"
)
