package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse is the plain acknowledgement of a namespace operation
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned by a successful upload
type UploadResponse struct {
	Message string `json:"message"`
	FileID  string `json:"data_id"`
}

// ListDirectoryResponse lists the direct children of a directory
type ListDirectoryResponse struct {
	DirectoryPath string   `json:"directory_path"`
	Files         []string `json:"files"`
	Folders       []string `json:"folders"`
}

// ChunkPlacement is one chunk and the workers holding it
type ChunkPlacement struct {
	ChunkIndex int      `json:"chunk_id"`
	Workers    []string `json:"datanodes"`
}

// FileInfo is a file annotated with its chunk placements
type FileInfo struct {
	File
	Chunks []ChunkPlacement `json:"chunks"`
}

// DirectoryInfo is a directory annotated with its files
type DirectoryInfo struct {
	Path    string     `json:"directory_path"`
	Folders []string   `json:"folders"`
	Files   []FileInfo `json:"files"`
	// Dangling lists file entries without a file record
	Dangling []string `json:"dangling,omitempty"`
}

// RecoveryReport summarizes one reconcile pass
type RecoveryReport struct {
	FileID          string            `json:"data_id"`
	NoActionNeeded  bool              `json:"no_action_needed"`
	InactiveWorkers []string          `json:"inactive_datanodes"`
	Handled         []string          `json:"handled_datanodes"`
	AlreadyHandled  []string          `json:"already_handled_datanodes,omitempty"`
	Repaired        []RepairedChunk   `json:"repaired"`
	Unrepaired      []UnrepairedChunk `json:"unrepaired,omitempty"`
}

// RepairedChunk is a chunk copied to a worker that lacked it
type RepairedChunk struct {
	ChunkIndex  int    `json:"chunk_id"`
	LostWorker  string `json:"lost_datanode"`
	Source      string `json:"source_datanode"`
	Destination string `json:"destination_datanode"`
}

// UnrepairedChunk is a chunk for which no gap could be filled
type UnrepairedChunk struct {
	ChunkIndex int    `json:"chunk_id"`
	LostWorker string `json:"lost_datanode"`
	Reason     string `json:"reason"`
}
