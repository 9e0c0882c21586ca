package coordinator

import "errors"

var (
	// ErrNoActiveWorkers means the active set was empty when placement started
	ErrNoActiveWorkers = errors.New("no active datanodes")
	// ErrInvalidChunkCount means the requested chunk count is below 1
	ErrInvalidChunkCount = errors.New("number of chunks must be at least 1")
	// ErrUploadRejected means at least one primary push failed
	ErrUploadRejected = errors.New("upload rejected by datanode")
	// ErrFileNotFound means no file record matched
	ErrFileNotFound = errors.New("file not found")
	// ErrNoChunksRecorded means a file exists but has no chunk locations
	ErrNoChunksRecorded = errors.New("no chunks recorded for file")
	// ErrChunkUnavailable means no location could serve a chunk
	ErrChunkUnavailable = errors.New("chunk unavailable on every location")
	// ErrReassemblyFailed means a partial read produced no bytes at all
	ErrReassemblyFailed = errors.New("reassembly failed")
)
