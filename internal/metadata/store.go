package metadata

import (
	"context"
	"errors"

	"github.com/soltixdb/chunkfs/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("metadata: not found")
	// ErrAlreadyExists is returned when a unique key is taken
	ErrAlreadyExists = errors.New("metadata: already exists")
	// ErrConflict is returned when an optimistic update keeps losing races
	ErrConflict = errors.New("metadata: concurrent modification")
)

// Store is the coordinator's source of truth. Every lookup is an exact match on a unique key;
// there are no joins. File names are unique per directory path.
type Store interface {
	CreateFile(ctx context.Context, f *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	FindFile(ctx context.Context, dirPath, name string) (*models.File, error)
	ListFiles(ctx context.Context) ([]*models.File, error)
	// UpdateFile rewrites a file record; its (directory, name) pair must stay unique
	UpdateFile(ctx context.Context, f *models.File) error
	DeleteFile(ctx context.Context, id string) error

	// AddChunkLocation is idempotent per (file, chunk, worker)
	AddChunkLocation(ctx context.Context, loc models.ChunkLocation) error
	// ListChunkLocations returns rows ordered by chunk index then worker address
	ListChunkLocations(ctx context.Context, fileID string) ([]models.ChunkLocation, error)
	DeleteChunkLocations(ctx context.Context, fileID string) error

	AddReplicationAttempt(ctx context.Context, a models.ReplicationAttempt) error
	// ListReplicationAttempts returns rows ordered by chunk index then attempt time
	ListReplicationAttempts(ctx context.Context, fileID string) ([]models.ReplicationAttempt, error)
	ClearReplicationAttempts(ctx context.Context, fileID string, chunkIndex int) error
	DeleteReplicationAttempts(ctx context.Context, fileID string) error

	CreateDirectory(ctx context.Context, dir *models.Directory) error
	GetDirectory(ctx context.Context, path string) (*models.Directory, error)
	ListDirectories(ctx context.Context) ([]*models.Directory, error)
	// UpdateDirectory applies fn to the current document and stores the result atomically
	UpdateDirectory(ctx context.Context, path string, fn func(*models.Directory) error) error
	DeleteDirectory(ctx context.Context, path string) error

	PutWorkerStatus(ctx context.Context, st models.WorkerStatus) error
	ListWorkerStatuses(ctx context.Context) ([]models.WorkerStatus, error)

	// MarkFailureHandled claims recovery of a worker outage. It returns false if already claimed.
	MarkFailureHandled(ctx context.Context, address string) (bool, error)
	IsFailureHandled(ctx context.Context, address string) (bool, error)
	ClearFailureHandled(ctx context.Context, address string) error

	Close() error
}
