package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/chunkfs/internal/coordinator"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/utils"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// UploadInput represents a file upload request
type UploadInput struct {
	FileName      string
	DirectoryPath string
	ChunkCount    int
	Data          []byte
}

// FileService uploads, reads, inspects and repairs files
type FileService struct {
	logger            *logging.Logger
	store             metadata.Store
	coord             *coordinator.Coordinator
	client            workerclient.Client
	metrics           *metrics.Metrics
	events            *queue.Events
	replicationFactor int
}

// NewFileService creates a new FileService
func NewFileService(
	logger *logging.Logger,
	store metadata.Store,
	coord *coordinator.Coordinator,
	client workerclient.Client,
	m *metrics.Metrics,
	events *queue.Events,
	replicationFactor int,
) *FileService {
	return &FileService{
		logger:            logger,
		store:             store,
		coord:             coord,
		client:            client,
		metrics:           m,
		events:            events,
		replicationFactor: replicationFactor,
	}
}

// Upload validates input, places and replicates the chunks and records the file.
// A partially placed upload is still recorded; the error then carries the file id.
func (s *FileService) Upload(ctx context.Context, input UploadInput) (string, error) {
	if !models.ValidName(input.FileName) {
		return "", invalid(CodeInvalidRequest, "a file with a valid name is required")
	}
	if len(input.Data) == 0 {
		return "", invalid(CodeInvalidRequest, "no file data given")
	}
	if input.ChunkCount < 1 {
		return "", invalid(CodeInvalidRequest, "number_of_chunks must be at least 1")
	}

	dirPath := models.NormalizePath(input.DirectoryPath)
	if dirPath == models.RootPath {
		if err := ensureRoot(ctx, s.store); err != nil {
			return "", internal("upload", err)
		}
	} else if _, err := s.store.GetDirectory(ctx, dirPath); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return "", invalid(CodeInvalidDirectory, "invalid directory path %s", dirPath)
		}
		return "", internal("upload", err)
	}

	id, err := s.save(ctx, input.FileName, dirPath, input.ChunkCount, input.Data)
	s.metrics.RecordUpload(err)
	if err != nil && id == "" {
		return "", err
	}
	s.events.NamespaceChanged("upload", models.JoinPath(dirPath, input.FileName), "", id)
	return id, err
}

// save places data under a fresh id and records the file in dirPath
func (s *FileService) save(ctx context.Context, name, dirPath string, chunkCount int, data []byte) (string, error) {
	if _, err := s.store.FindFile(ctx, dirPath, name); err == nil {
		return "", conflict(CodeFileExists, "file %s already exists in %s", name, dirPath)
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return "", internal("upload", err)
	}

	id := uuid.NewString()
	res, _, placeErr := s.coord.Upload(ctx, id, data, chunkCount)
	switch {
	case placeErr == nil, errors.Is(placeErr, coordinator.ErrUploadRejected):
	case errors.Is(placeErr, coordinator.ErrNoActiveWorkers):
		return "", NewServiceError(KindUpstreamUnavailable, CodeNoActiveDatanodes, "no active datanodes")
	case errors.Is(placeErr, coordinator.ErrInvalidChunkCount):
		return "", invalid(CodeInvalidRequest, "number_of_chunks must be at least 1")
	default:
		s.logger.Error("Chunk placement failed", "file_id", id, "error", placeErr)
		return "", internal("upload", placeErr)
	}

	f := &models.File{
		ID:                id,
		Name:              name,
		ChunkCount:        chunkCount,
		ReplicationFactor: s.replicationFactor,
		DirectoryPath:     dirPath,
		UploadTime:        time.Now().UTC(),
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		if errors.Is(err, metadata.ErrAlreadyExists) {
			return "", conflict(CodeFileExists, "file %s already exists in %s", name, dirPath)
		}
		return "", internal("upload", err)
	}
	if err := addEntry(ctx, s.store, dirPath, models.FileEntry(name)); err != nil {
		return id, internal("upload", err)
	}

	if placeErr != nil {
		s.logger.Warn("Upload incomplete", "file_id", id, "failed_chunks", res.Failed)
		return id, NewServiceErrorWithDetails(KindUpstreamUnavailable, CodeUploadIncomplete,
			"some chunks could not be placed", map[string]interface{}{
				"data_id":       id,
				"failed_chunks": res.Failed,
			})
	}
	s.logger.Info("File uploaded", "file_id", id, "name", name, "directory", dirPath, "chunks", chunkCount, "bytes", len(data))
	return id, nil
}

// Download reassembles the file named name in dirPath
func (s *FileService) Download(ctx context.Context, name, dirPath string) ([]byte, *models.File, error) {
	f, err := s.lookup(ctx, name, dirPath)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.read(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return data, f, nil
}

func (s *FileService) lookup(ctx context.Context, name, dirPath string) (*models.File, error) {
	if name == "" {
		return nil, invalid(CodeInvalidRequest, "file_name is required")
	}
	dirPath = models.NormalizePath(dirPath)
	f, err := s.store.FindFile(ctx, dirPath, name)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, notFound(CodeFileNotFound, "file %s not found in %s", name, dirPath)
		}
		return nil, internal("lookup", err)
	}
	return f, nil
}

func (s *FileService) read(ctx context.Context, f *models.File) ([]byte, error) {
	data, err := s.coord.Reader.Read(ctx, f.ID)
	if err == nil {
		return data, nil
	}
	details := map[string]interface{}{"data_id": f.ID}
	switch {
	case errors.Is(err, coordinator.ErrFileNotFound):
		return nil, notFound(CodeFileNotFound, "file %s not found", f.Name)
	case errors.Is(err, coordinator.ErrNoChunksRecorded):
		return nil, NewServiceErrorWithDetails(KindPartialData, CodeNoChunksRecorded, "no chunks recorded for file", details)
	case errors.Is(err, coordinator.ErrChunkUnavailable):
		return nil, NewServiceErrorWithDetails(KindPartialData, CodeChunkUnavailable, "a chunk is unavailable on every location", details)
	case errors.Is(err, coordinator.ErrReassemblyFailed):
		return nil, NewServiceErrorWithDetails(KindPartialData, CodeReassemblyFailed, "failed to fetch file data", details)
	default:
		s.logger.Error("File read failed", "file_id", f.ID, "error", err)
		return nil, internal("read", err)
	}
}

// Info lists every directory with its folders and files, each file annotated
// with its chunk placements. File entries without a record are listed as dangling.
func (s *FileService) Info(ctx context.Context) ([]models.DirectoryInfo, error) {
	dirs, err := s.store.ListDirectories(ctx)
	if err != nil {
		return nil, internal("get info", err)
	}

	out := make([]models.DirectoryInfo, 0, len(dirs))
	for _, d := range dirs {
		info := models.DirectoryInfo{Path: d.Path, Folders: d.Folders(), Files: []models.FileInfo{}}
		for _, name := range d.Files() {
			f, err := s.store.FindFile(ctx, d.Path, name)
			if errors.Is(err, metadata.ErrNotFound) {
				info.Dangling = append(info.Dangling, name)
				continue
			}
			if err != nil {
				return nil, internal("get info", err)
			}
			locs, err := s.store.ListChunkLocations(ctx, f.ID)
			if err != nil {
				return nil, internal("get info", err)
			}
			info.Files = append(info.Files, models.FileInfo{File: *f, Chunks: placements(locs)})
		}
		out = append(out, info)
	}
	return out, nil
}

func placements(locs []models.ChunkLocation) []models.ChunkPlacement {
	out := []models.ChunkPlacement{}
	for _, l := range locs {
		if n := len(out); n > 0 && out[n-1].ChunkIndex == l.ChunkIndex {
			out[n-1].Workers = append(out[n-1].Workers, l.WorkerAddress)
			continue
		}
		out = append(out, models.ChunkPlacement{ChunkIndex: l.ChunkIndex, Workers: []string{l.WorkerAddress}})
	}
	return out
}

// DatanodeStatus returns the latest classification per worker. Markers of
// workers that are Active again are cleared on the way.
func (s *FileService) DatanodeStatus(ctx context.Context) (map[string]models.WorkerState, error) {
	statuses, err := s.store.ListWorkerStatuses(ctx)
	if err != nil {
		return nil, internal("datanode status", err)
	}
	if err := s.coord.Reconciler.ClearRecoveredMarkers(ctx, statuses); err != nil {
		s.logger.Warn("Failed to clear failure markers", "error", err)
	}
	out := make(map[string]models.WorkerState, len(statuses))
	for _, st := range statuses {
		out[st.Address] = st.Status
	}
	return out, nil
}

// ReReplicate restores the chunks of a file lost to inactive workers
func (s *FileService) ReReplicate(ctx context.Context, name, dirPath string) (*models.RecoveryReport, error) {
	f, err := s.lookup(ctx, name, dirPath)
	if err != nil {
		return nil, err
	}
	report, err := s.coord.Reconciler.Reconcile(ctx, f.ID)
	if err != nil {
		s.logger.Error("Reconcile failed", "file_id", f.ID, "error", err)
		return nil, internal("re-replicate", err)
	}
	return report, nil
}

// duplicate copies the bytes of f into a new file with a new id in dirPath
func (s *FileService) duplicate(ctx context.Context, f *models.File, dirPath string) (string, error) {
	data, err := s.read(ctx, f)
	if err != nil {
		return "", err
	}
	return s.save(ctx, f.Name, dirPath, f.ChunkCount, data)
}

// remove deletes every record of f and asks every known worker to drop its chunks.
// Worker failures are logged, not returned.
func (s *FileService) remove(ctx context.Context, f *models.File) error {
	if err := s.store.DeleteFile(ctx, f.ID); err != nil {
		return internal("delete", err)
	}
	if err := s.store.DeleteChunkLocations(ctx, f.ID); err != nil {
		return internal("delete", err)
	}
	if err := s.store.DeleteReplicationAttempts(ctx, f.ID); err != nil {
		return internal("delete", err)
	}
	if err := removeEntry(ctx, s.store, f.DirectoryPath, models.FileEntry(f.Name)); err != nil {
		return internal("delete", err)
	}
	s.coord.Forget(f.ID)
	s.deleteChunks(ctx, f.ID)
	return nil
}

func (s *FileService) deleteChunks(ctx context.Context, fileID string) {
	ctx, cancel := context.WithTimeout(ctx, utils.WorkerDeleteTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, addr := range s.coord.Workers.Known() {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			err := s.client.DeleteAll(ctx, addr, fileID)
			s.metrics.RecordWorkerRequest("delete", err)
			if err != nil {
				s.logger.Warn("Failed to delete chunks from datanode", "file_id", fileID, "datanode", addr, "error", err)
			}
		}(addr)
	}
	wg.Wait()
}
