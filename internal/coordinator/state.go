package coordinator

import (
	"sync"

	"github.com/soltixdb/chunkfs/internal/models"
)

// WorkerSet is the in-memory view of worker liveness. Order of the active
// list follows the order in which addresses became known.
type WorkerSet struct {
	mu     sync.RWMutex
	order  []string
	states map[string]models.WorkerState
}

// NewWorkerSet creates a set knowing addrs, all unclassified
func NewWorkerSet(addrs []string) *WorkerSet {
	w := &WorkerSet{states: make(map[string]models.WorkerState)}
	w.AddKnown(addrs)
	return w
}

// AddKnown appends addresses not yet known
func (w *WorkerSet) AddKnown(addrs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range addrs {
		if _, ok := w.states[a]; ok {
			continue
		}
		w.states[a] = ""
		w.order = append(w.order, a)
	}
}

// Known returns every known address
func (w *WorkerSet) Known() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.order...)
}

// Set records a classification and returns the previous one
func (w *WorkerSet) Set(addr string, state models.WorkerState) (previous models.WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	previous, ok := w.states[addr]
	if !ok {
		w.order = append(w.order, addr)
	}
	w.states[addr] = state
	return previous
}

// State returns the classification of addr, "" if never probed
func (w *WorkerSet) State(addr string) models.WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.states[addr]
}

// Active returns the active addresses in known order
func (w *WorkerSet) Active() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.order))
	for _, a := range w.order {
		if w.states[a] == models.WorkerActive {
			out = append(out, a)
		}
	}
	return out
}

type chunkKey struct {
	fileID string
	index  int
}

// LocationMirror caches chunk placement for decisions made during an upload.
// The first address recorded for a chunk is its primary.
type LocationMirror struct {
	mu   sync.RWMutex
	locs map[chunkKey][]string
}

// NewLocationMirror creates an empty mirror
func NewLocationMirror() *LocationMirror {
	return &LocationMirror{locs: make(map[chunkKey][]string)}
}

// Add records addr for a chunk. It returns false if already recorded.
func (m *LocationMirror) Add(fileID string, index int, addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := chunkKey{fileID, index}
	for _, a := range m.locs[k] {
		if a == addr {
			return false
		}
	}
	m.locs[k] = append(m.locs[k], addr)
	return true
}

// Primary returns the first recorded address of a chunk
func (m *LocationMirror) Primary(fileID string, index int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locs := m.locs[chunkKey{fileID, index}]
	if len(locs) == 0 {
		return "", false
	}
	return locs[0], true
}

// Locations returns every recorded address of a chunk
func (m *LocationMirror) Locations(fileID string, index int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.locs[chunkKey{fileID, index}]...)
}

// Forget drops every chunk of a file
func (m *LocationMirror) Forget(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.locs {
		if k.fileID == fileID {
			delete(m.locs, k)
		}
	}
}

// Load seeds the mirror from stored rows, primaries first
func (m *LocationMirror) Load(locs []models.ChunkLocation) {
	for _, l := range locs {
		if l.Role == models.RolePrimary {
			m.Add(l.FileID, l.ChunkIndex, l.WorkerAddress)
		}
	}
	for _, l := range locs {
		m.Add(l.FileID, l.ChunkIndex, l.WorkerAddress)
	}
}

// Len returns the number of chunks tracked
func (m *LocationMirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locs)
}
