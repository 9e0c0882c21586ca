package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/chunkfs/internal/config"
	"github.com/soltixdb/chunkfs/internal/models"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	keyRoot           = "/chunkfs"
	filesPrefix       = keyRoot + "/files"
	namesPrefix       = keyRoot + "/names"
	chunksPrefix      = keyRoot + "/chunks"
	replicationPrefix = keyRoot + "/replication"
	directoriesPrefix = keyRoot + "/directories"
	workersPrefix     = keyRoot + "/workers"
	handledPrefix     = keyRoot + "/failure_handled"

	maxCASRetries = 16
)

var now = time.Now

// EtcdStore implements Store on etcd. Documents are JSON values; uniqueness is enforced
// with create-revision comparisons and set updates use mod-revision compare-and-swap.
type EtcdStore struct {
	client    *clientv3.Client
	ownClient bool
	files     *Cache[models.File]
}

// NewEtcdClient dials etcd using the shared configuration
func NewEtcdClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

// NewEtcdStore dials etcd and returns a store that owns the client
func NewEtcdStore(cfg config.EtcdConfig, cacheTTL time.Duration) (*EtcdStore, error) {
	client, err := NewEtcdClient(cfg)
	if err != nil {
		return nil, err
	}
	s := NewEtcdStoreWithClient(client, cacheTTL)
	s.ownClient = true
	return s, nil
}

// NewEtcdStoreWithClient wraps an existing client. The caller keeps ownership of it.
func NewEtcdStoreWithClient(client *clientv3.Client, cacheTTL time.Duration) *EtcdStore {
	s := &EtcdStore{client: client}
	if cacheTTL > 0 {
		s.files = NewCache[models.File](cacheTTL)
	}
	return s
}

func seg(s string) string {
	return url.PathEscape(s)
}

func fileKey(id string) string { return path.Join(filesPrefix, seg(id)) }

func nameIndexKey(dir, name string) string {
	return path.Join(namesPrefix, seg(dir), seg(name))
}

func chunkFilePrefix(fileID string) string { return path.Join(chunksPrefix, seg(fileID)) + "/" }

func chunkKeyFor(loc models.ChunkLocation) string {
	return chunkFilePrefix(loc.FileID) + fmt.Sprintf("%06d/%s", loc.ChunkIndex, seg(loc.WorkerAddress))
}

func attemptFilePrefix(fileID string) string {
	return path.Join(replicationPrefix, seg(fileID)) + "/"
}

func attemptChunkPrefix(fileID string, chunkIndex int) string {
	return attemptFilePrefix(fileID) + fmt.Sprintf("%06d/", chunkIndex)
}

func directoryKey(p string) string { return path.Join(directoriesPrefix, seg(p)) }

func workerKey(addr string) string { return path.Join(workersPrefix, seg(addr)) }

func handledKey(addr string) string { return path.Join(handledPrefix, seg(addr)) }

func putJSON(key string, v interface{}) (clientv3.Op, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return clientv3.Op{}, fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return clientv3.OpPut(key, string(data)), nil
}

// ============================================================================
// Files
// ============================================================================

func (s *EtcdStore) CreateFile(ctx context.Context, f *models.File) error {
	fk := fileKey(f.ID)
	nk := nameIndexKey(f.DirectoryPath, f.Name)

	put, err := putJSON(fk, f)
	if err != nil {
		return err
	}
	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(fk), "=", 0),
			clientv3.Compare(clientv3.CreateRevision(nk), "=", 0),
		).
		Then(put, clientv3.OpPut(nk, f.ID)).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to create file in etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("file %s in %s: %w", f.Name, f.DirectoryPath, ErrAlreadyExists)
	}
	return nil
}

func (s *EtcdStore) getFileRev(ctx context.Context, id string) (*models.File, int64, error) {
	resp, err := s.client.Get(ctx, fileKey(id))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get file from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	var f models.File
	if err := json.Unmarshal(resp.Kvs[0].Value, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return &f, resp.Kvs[0].ModRevision, nil
}

func (s *EtcdStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	if s.files != nil {
		if f, ok := s.files.Get(id); ok {
			return &f, nil
		}
	}
	f, _, err := s.getFileRev(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.files != nil {
		s.files.Set(id, *f)
	}
	return f, nil
}

func (s *EtcdStore) FindFile(ctx context.Context, dirPath, name string) (*models.File, error) {
	resp, err := s.client.Get(ctx, nameIndexKey(dirPath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to look up file name in etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("file %s in %s: %w", name, dirPath, ErrNotFound)
	}
	return s.GetFile(ctx, string(resp.Kvs[0].Value))
}

func (s *EtcdStore) ListFiles(ctx context.Context) ([]*models.File, error) {
	resp, err := s.client.Get(ctx, filesPrefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list files from etcd: %w", err)
	}
	out := make([]*models.File, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var f models.File
		if err := json.Unmarshal(kv.Value, &f); err != nil {
			continue
		}
		out = append(out, &f)
	}
	return out, nil
}

func (s *EtcdStore) UpdateFile(ctx context.Context, f *models.File) error {
	fk := fileKey(f.ID)
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		old, rev, err := s.getFileRev(ctx, f.ID)
		if err != nil {
			return err
		}
		put, err := putJSON(fk, f)
		if err != nil {
			return err
		}

		cmps := []clientv3.Cmp{clientv3.Compare(clientv3.ModRevision(fk), "=", rev)}
		ops := []clientv3.Op{put}
		oldName := nameIndexKey(old.DirectoryPath, old.Name)
		newName := nameIndexKey(f.DirectoryPath, f.Name)
		if oldName != newName {
			cmps = append(cmps, clientv3.Compare(clientv3.CreateRevision(newName), "=", 0))
			ops = append(ops, clientv3.OpDelete(oldName), clientv3.OpPut(newName, f.ID))
		}

		resp, err := s.client.Txn(ctx).If(cmps...).Then(ops...).Commit()
		if err != nil {
			return fmt.Errorf("failed to update file in etcd: %w", err)
		}
		if resp.Succeeded {
			if s.files != nil {
				s.files.Delete(f.ID)
			}
			return nil
		}
		if oldName != newName {
			taken, err := s.client.Get(ctx, newName, clientv3.WithCountOnly())
			if err != nil {
				return fmt.Errorf("failed to check file name in etcd: %w", err)
			}
			if taken.Count > 0 {
				return fmt.Errorf("file %s in %s: %w", f.Name, f.DirectoryPath, ErrAlreadyExists)
			}
		}
	}
	return fmt.Errorf("file %s: %w", f.ID, ErrConflict)
}

func (s *EtcdStore) DeleteFile(ctx context.Context, id string) error {
	f, _, err := s.getFileRev(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.client.Txn(ctx).
		Then(clientv3.OpDelete(fileKey(id)), clientv3.OpDelete(nameIndexKey(f.DirectoryPath, f.Name))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to delete file from etcd: %w", err)
	}
	if s.files != nil {
		s.files.Delete(id)
	}
	return nil
}

// ============================================================================
// Chunk locations and replication attempts
// ============================================================================

func (s *EtcdStore) AddChunkLocation(ctx context.Context, loc models.ChunkLocation) error {
	key := chunkKeyFor(loc)
	put, err := putJSON(key, loc)
	if err != nil {
		return err
	}
	// keep the first role recorded for a location
	_, err = s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(put).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to store chunk location in etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) ListChunkLocations(ctx context.Context, fileID string) ([]models.ChunkLocation, error) {
	resp, err := s.client.Get(ctx, chunkFilePrefix(fileID), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk locations from etcd: %w", err)
	}
	out := make([]models.ChunkLocation, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var loc models.ChunkLocation
		if err := json.Unmarshal(kv.Value, &loc); err != nil {
			continue
		}
		out = append(out, loc)
	}
	// keys sort by escaped address, re-sort on the raw value
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return out[i].WorkerAddress < out[j].WorkerAddress
	})
	return out, nil
}

func (s *EtcdStore) DeleteChunkLocations(ctx context.Context, fileID string) error {
	if _, err := s.client.Delete(ctx, chunkFilePrefix(fileID), clientv3.WithPrefix()); err != nil {
		return fmt.Errorf("failed to delete chunk locations from etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) AddReplicationAttempt(ctx context.Context, a models.ReplicationAttempt) error {
	if a.ID == "" {
		// v7 ids sort by creation time, so key order is attempt order
		a.ID = uuid.Must(uuid.NewV7()).String()
	}
	key := attemptChunkPrefix(a.FileID, a.ChunkIndex) + a.ID
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal replication attempt: %w", err)
	}
	if _, err := s.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store replication attempt in etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) ListReplicationAttempts(ctx context.Context, fileID string) ([]models.ReplicationAttempt, error) {
	resp, err := s.client.Get(ctx, attemptFilePrefix(fileID), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list replication attempts from etcd: %w", err)
	}
	out := make([]models.ReplicationAttempt, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var a models.ReplicationAttempt
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *EtcdStore) ClearReplicationAttempts(ctx context.Context, fileID string, chunkIndex int) error {
	if _, err := s.client.Delete(ctx, attemptChunkPrefix(fileID, chunkIndex), clientv3.WithPrefix()); err != nil {
		return fmt.Errorf("failed to clear replication attempts in etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) DeleteReplicationAttempts(ctx context.Context, fileID string) error {
	if _, err := s.client.Delete(ctx, attemptFilePrefix(fileID), clientv3.WithPrefix()); err != nil {
		return fmt.Errorf("failed to delete replication attempts from etcd: %w", err)
	}
	return nil
}

// ============================================================================
// Directories
// ============================================================================

func (s *EtcdStore) CreateDirectory(ctx context.Context, dir *models.Directory) error {
	key := directoryKey(dir.Path)
	put, err := putJSON(key, dir)
	if err != nil {
		return err
	}
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(put).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to create directory in etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("directory %s: %w", dir.Path, ErrAlreadyExists)
	}
	return nil
}

func (s *EtcdStore) GetDirectory(ctx context.Context, p string) (*models.Directory, error) {
	dir, _, err := s.getDirectoryRev(ctx, p)
	return dir, err
}

func (s *EtcdStore) getDirectoryRev(ctx context.Context, p string) (*models.Directory, int64, error) {
	resp, err := s.client.Get(ctx, directoryKey(p))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get directory from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, fmt.Errorf("directory %s: %w", p, ErrNotFound)
	}
	var dir models.Directory
	if err := json.Unmarshal(resp.Kvs[0].Value, &dir); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal directory: %w", err)
	}
	return &dir, resp.Kvs[0].ModRevision, nil
}

func (s *EtcdStore) ListDirectories(ctx context.Context) ([]*models.Directory, error) {
	resp, err := s.client.Get(ctx, directoriesPrefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list directories from etcd: %w", err)
	}
	out := make([]*models.Directory, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var dir models.Directory
		if err := json.Unmarshal(kv.Value, &dir); err != nil {
			continue
		}
		out = append(out, &dir)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *EtcdStore) UpdateDirectory(ctx context.Context, p string, fn func(*models.Directory) error) error {
	key := directoryKey(p)
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		dir, rev, err := s.getDirectoryRev(ctx, p)
		if err != nil {
			return err
		}
		if err := fn(dir); err != nil {
			return err
		}
		dir.Path = p
		put, err := putJSON(key, dir)
		if err != nil {
			return err
		}
		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
			Then(put).
			Commit()
		if err != nil {
			return fmt.Errorf("failed to update directory in etcd: %w", err)
		}
		if resp.Succeeded {
			return nil
		}
	}
	return fmt.Errorf("directory %s: %w", p, ErrConflict)
}

func (s *EtcdStore) DeleteDirectory(ctx context.Context, p string) error {
	if _, err := s.client.Delete(ctx, directoryKey(p)); err != nil {
		return fmt.Errorf("failed to delete directory from etcd: %w", err)
	}
	return nil
}

// ============================================================================
// Workers
// ============================================================================

func (s *EtcdStore) PutWorkerStatus(ctx context.Context, st models.WorkerStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal worker status: %w", err)
	}
	if _, err := s.client.Put(ctx, workerKey(st.Address), string(data)); err != nil {
		return fmt.Errorf("failed to store worker status in etcd: %w", err)
	}
	return nil
}

func (s *EtcdStore) ListWorkerStatuses(ctx context.Context) ([]models.WorkerStatus, error) {
	resp, err := s.client.Get(ctx, workersPrefix+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list worker statuses from etcd: %w", err)
	}
	out := make([]models.WorkerStatus, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var st models.WorkerStatus
		if err := json.Unmarshal(kv.Value, &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *EtcdStore) MarkFailureHandled(ctx context.Context, address string) (bool, error) {
	key := handledKey(address)
	put, err := putJSON(key, models.FailureMarker{Address: address, MarkedAt: now()})
	if err != nil {
		return false, err
	}
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(put).
		Commit()
	if err != nil {
		return false, fmt.Errorf("failed to mark failure handled in etcd: %w", err)
	}
	return resp.Succeeded, nil
}

func (s *EtcdStore) IsFailureHandled(ctx context.Context, address string) (bool, error) {
	resp, err := s.client.Get(ctx, handledKey(address), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to read failure marker from etcd: %w", err)
	}
	return resp.Count > 0, nil
}

func (s *EtcdStore) ClearFailureHandled(ctx context.Context, address string) error {
	if _, err := s.client.Delete(ctx, handledKey(address)); err != nil {
		return fmt.Errorf("failed to clear failure marker in etcd: %w", err)
	}
	return nil
}

// Client exposes the underlying etcd client for components sharing the connection
func (s *EtcdStore) Client() *clientv3.Client {
	return s.client
}

func (s *EtcdStore) Close() error {
	if s.files != nil {
		s.files.Stop()
	}
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
