package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/soltixdb/chunkfs/internal/models"
)

type nameKey struct {
	dir  string
	name string
}

type chunkKey struct {
	fileID string
	index  int
	addr   string
}

// MemoryStore is an in-process Store for single-node deployments and tests
type MemoryStore struct {
	mu          sync.RWMutex
	files       map[string]models.File
	names       map[nameKey]string
	locations   map[string]map[chunkKey]models.ChunkLocation
	attempts    map[string][]models.ReplicationAttempt
	directories map[string]models.Directory
	workers     map[string]models.WorkerStatus
	handled     map[string]models.FailureMarker
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:       make(map[string]models.File),
		names:       make(map[nameKey]string),
		locations:   make(map[string]map[chunkKey]models.ChunkLocation),
		attempts:    make(map[string][]models.ReplicationAttempt),
		directories: make(map[string]models.Directory),
		workers:     make(map[string]models.WorkerStatus),
		handled:     make(map[string]models.FailureMarker),
	}
}

func (m *MemoryStore) CreateFile(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[f.ID]; ok {
		return fmt.Errorf("file %s: %w", f.ID, ErrAlreadyExists)
	}
	nk := nameKey{f.DirectoryPath, f.Name}
	if _, ok := m.names[nk]; ok {
		return fmt.Errorf("file %s in %s: %w", f.Name, f.DirectoryPath, ErrAlreadyExists)
	}
	m.files[f.ID] = *f
	m.names[nk] = f.ID
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, id string) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return &f, nil
}

func (m *MemoryStore) FindFile(_ context.Context, dirPath, name string) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.names[nameKey{dirPath, name}]
	if !ok {
		return nil, fmt.Errorf("file %s in %s: %w", name, dirPath, ErrNotFound)
	}
	f := m.files[id]
	return &f, nil
}

func (m *MemoryStore) ListFiles(_ context.Context) ([]*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.File, 0, len(m.files))
	for _, f := range m.files {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateFile(_ context.Context, f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.files[f.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", f.ID, ErrNotFound)
	}
	oldKey := nameKey{old.DirectoryPath, old.Name}
	newKey := nameKey{f.DirectoryPath, f.Name}
	if oldKey != newKey {
		if _, taken := m.names[newKey]; taken {
			return fmt.Errorf("file %s in %s: %w", f.Name, f.DirectoryPath, ErrAlreadyExists)
		}
		delete(m.names, oldKey)
		m.names[newKey] = f.ID
	}
	m.files[f.ID] = *f
	return nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[id]
	if !ok {
		return nil
	}
	delete(m.names, nameKey{f.DirectoryPath, f.Name})
	delete(m.files, id)
	return nil
}

func (m *MemoryStore) AddChunkLocation(_ context.Context, loc models.ChunkLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.locations[loc.FileID]
	if !ok {
		rows = make(map[chunkKey]models.ChunkLocation)
		m.locations[loc.FileID] = rows
	}
	k := chunkKey{loc.FileID, loc.ChunkIndex, loc.WorkerAddress}
	if _, exists := rows[k]; exists {
		return nil
	}
	rows[k] = loc
	return nil
}

func (m *MemoryStore) ListChunkLocations(_ context.Context, fileID string) ([]models.ChunkLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.locations[fileID]
	out := make([]models.ChunkLocation, 0, len(rows))
	for _, loc := range rows {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return out[i].WorkerAddress < out[j].WorkerAddress
	})
	return out, nil
}

func (m *MemoryStore) DeleteChunkLocations(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locations, fileID)
	return nil
}

func (m *MemoryStore) AddReplicationAttempt(_ context.Context, a models.ReplicationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV7()).String()
	}
	m.attempts[a.FileID] = append(m.attempts[a.FileID], a)
	return nil
}

func (m *MemoryStore) ListReplicationAttempts(_ context.Context, fileID string) ([]models.ReplicationAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]models.ReplicationAttempt(nil), m.attempts[fileID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (m *MemoryStore) ClearReplicationAttempts(_ context.Context, fileID string, chunkIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[fileID][:0]
	for _, a := range m.attempts[fileID] {
		if a.ChunkIndex != chunkIndex {
			kept = append(kept, a)
		}
	}
	m.attempts[fileID] = kept
	return nil
}

func (m *MemoryStore) DeleteReplicationAttempts(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.attempts, fileID)
	return nil
}

func (m *MemoryStore) CreateDirectory(_ context.Context, dir *models.Directory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.directories[dir.Path]; ok {
		return fmt.Errorf("directory %s: %w", dir.Path, ErrAlreadyExists)
	}
	m.directories[dir.Path] = cloneDirectory(*dir)
	return nil
}

func (m *MemoryStore) GetDirectory(_ context.Context, path string) (*models.Directory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir, ok := m.directories[path]
	if !ok {
		return nil, fmt.Errorf("directory %s: %w", path, ErrNotFound)
	}
	out := cloneDirectory(dir)
	return &out, nil
}

func (m *MemoryStore) ListDirectories(_ context.Context) ([]*models.Directory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Directory, 0, len(m.directories))
	for _, dir := range m.directories {
		d := cloneDirectory(dir)
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) UpdateDirectory(_ context.Context, path string, fn func(*models.Directory) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir, ok := m.directories[path]
	if !ok {
		return fmt.Errorf("directory %s: %w", path, ErrNotFound)
	}
	updated := cloneDirectory(dir)
	if err := fn(&updated); err != nil {
		return err
	}
	updated.Path = path
	m.directories[path] = updated
	return nil
}

func (m *MemoryStore) DeleteDirectory(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.directories, path)
	return nil
}

func (m *MemoryStore) PutWorkerStatus(_ context.Context, st models.WorkerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers[st.Address] = st
	return nil
}

func (m *MemoryStore) ListWorkerStatuses(_ context.Context) ([]models.WorkerStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.WorkerStatus, 0, len(m.workers))
	for _, st := range m.workers {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemoryStore) MarkFailureHandled(_ context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handled[address]; ok {
		return false, nil
	}
	m.handled[address] = models.FailureMarker{Address: address, MarkedAt: now()}
	return true, nil
}

func (m *MemoryStore) IsFailureHandled(_ context.Context, address string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.handled[address]
	return ok, nil
}

func (m *MemoryStore) ClearFailureHandled(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.handled, address)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneDirectory(d models.Directory) models.Directory {
	d.Content = append([]models.Entry(nil), d.Content...)
	return d
}
