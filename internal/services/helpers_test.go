package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/coordinator"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// mockWorkers is an in-memory workerclient.Client keyed by address
type mockWorkers struct {
	mu     sync.Mutex
	down   map[string]bool
	chunks map[string]map[string][]byte
}

func newMockWorkers(addrs ...string) *mockWorkers {
	m := &mockWorkers{down: map[string]bool{}, chunks: map[string]map[string][]byte{}}
	for _, a := range addrs {
		m.chunks[a] = map[string][]byte{}
	}
	return m
}

func (m *mockWorkers) setDown(addr string, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[addr] = down
}

// count returns how many chunks of fileID all workers hold
func (m *mockWorkers) count(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, held := range m.chunks {
		for k := range held {
			if strings.HasPrefix(k, fileID+"/") {
				n++
			}
		}
	}
	return n
}

func (m *mockWorkers) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, held := range m.chunks {
		n += len(held)
	}
	return n
}

func (m *mockWorkers) dropEverywhere(fileID string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, held := range m.chunks {
		delete(held, fmt.Sprintf("%s/%d", fileID, index))
	}
}

func (m *mockWorkers) reachable(addr string) (map[string][]byte, error) {
	held, ok := m.chunks[addr]
	if !ok || m.down[addr] {
		return nil, fmt.Errorf("%w: %s", workerclient.ErrWorkerUnavailable, addr)
	}
	return held, nil
}

func (m *mockWorkers) Probe(_ context.Context, addr string) (workerclient.ProbeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.reachable(addr); err != nil {
		return workerclient.ProbeResult{}, err
	}
	return workerclient.ProbeResult{NodeID: addr, Active: true}, nil
}

func (m *mockWorkers) Put(_ context.Context, addr, fileID string, index int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, err := m.reachable(addr)
	if err != nil {
		return err
	}
	held[fmt.Sprintf("%s/%d", fileID, index)] = append([]byte(nil), data...)
	return nil
}

func (m *mockWorkers) Get(_ context.Context, addr, fileID string, index int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, err := m.reachable(addr)
	if err != nil {
		return nil, err
	}
	data, ok := held[fmt.Sprintf("%s/%d", fileID, index)]
	if !ok {
		return nil, workerclient.ErrChunkNotFound
	}
	return data, nil
}

func (m *mockWorkers) DeleteAll(_ context.Context, addr, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, err := m.reachable(addr)
	if err != nil {
		return err
	}
	for k := range held {
		if strings.HasPrefix(k, fileID+"/") {
			delete(held, k)
		}
	}
	return nil
}

type testServices struct {
	store   *metadata.MemoryStore
	workers *mockWorkers
	coord   *coordinator.Coordinator
	files   *FileService
	ns      *NamespaceService
}

func newTestServices(t *testing.T, events *queue.Events, addrs ...string) *testServices {
	t.Helper()
	logger := logging.NewNop()
	store := metadata.NewMemoryStore()
	workers := newMockWorkers(addrs...)
	coord := coordinator.New(context.Background(), coordinator.Config{
		ReplicationFactor: 3,
		MaxInFlight:       4,
		ProbeInterval:     time.Hour,
		ProbeTimeout:      time.Second,
	}, coordinator.Deps{
		Store:  store,
		Client: workers,
		Source: registry.StaticSource(addrs),
		Events: events,
		Logger: logger,
	})
	coord.Monitor.Sweep(context.Background())
	t.Cleanup(coord.Stop)

	files := NewFileService(logger, store, coord, workers, nil, events, 3)
	ns := NewNamespaceService(logger, store, files, events)
	if err := ns.EnsureRoot(context.Background()); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	return &testServices{store: store, workers: workers, coord: coord, files: files, ns: ns}
}

func (s *testServices) upload(t *testing.T, name, dir string, data []byte, chunks int) string {
	t.Helper()
	id, err := s.files.Upload(context.Background(), UploadInput{FileName: name, DirectoryPath: dir, ChunkCount: chunks, Data: data})
	if err != nil {
		t.Fatalf("Upload %s: %v", name, err)
	}
	s.coord.Wait()
	return id
}

func (s *testServices) mkdir(t *testing.T, p string) {
	t.Helper()
	if err := s.ns.CreateDirectory(context.Background(), p); err != nil {
		t.Fatalf("CreateDirectory %s: %v", p, err)
	}
}

// serviceErr asserts err is a *ServiceError of the given kind and code
func serviceErr(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	se, ok := err.(*ServiceError)
	if !ok {
		t.Fatalf("expected *ServiceError, got %T (%v)", err, err)
	}
	if se.Kind != kind || se.Code != code {
		t.Errorf("expected %s/%s, got %s/%s (%s)", kind, code, se.Kind, se.Code, se.Message)
	}
}
