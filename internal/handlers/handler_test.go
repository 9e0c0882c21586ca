package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/chunkfs/internal/coordinator"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/middleware"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/services"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// MockWorkers is an in-memory workerclient.Client
type MockWorkers struct {
	mu     sync.Mutex
	chunks map[string][]byte
}

func NewMockWorkers() *MockWorkers {
	return &MockWorkers{chunks: make(map[string][]byte)}
}

func key(addr, fileID string, index int) string {
	return fmt.Sprintf("%s|%s|%d", addr, fileID, index)
}

func (m *MockWorkers) Probe(_ context.Context, addr string) (workerclient.ProbeResult, error) {
	return workerclient.ProbeResult{NodeID: addr, Active: true}, nil
}

func (m *MockWorkers) Put(_ context.Context, addr, fileID string, index int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[key(addr, fileID, index)] = append([]byte(nil), data...)
	return nil
}

func (m *MockWorkers) Get(_ context.Context, addr, fileID string, index int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.chunks[key(addr, fileID, index)]
	if !ok {
		return nil, workerclient.ErrChunkNotFound
	}
	return data, nil
}

func (m *MockWorkers) DeleteAll(_ context.Context, addr, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.chunks {
		if strings.HasPrefix(k, addr+"|"+fileID+"|") {
			delete(m.chunks, k)
		}
	}
	return nil
}

func setupApp(t *testing.T) (*fiber.App, *metadata.MemoryStore) {
	t.Helper()
	logger := logging.NewNop()
	store := metadata.NewMemoryStore()
	workers := NewMockWorkers()
	addrs := []string{"w1", "w2"}

	coord := coordinator.New(context.Background(), coordinator.Config{
		ReplicationFactor: 2,
		MaxInFlight:       2,
		ProbeInterval:     time.Hour,
		ProbeTimeout:      time.Second,
	}, coordinator.Deps{Store: store, Client: workers, Source: registry.StaticSource(addrs), Logger: logger})
	coord.Monitor.Sweep(context.Background())
	t.Cleanup(coord.Stop)

	files := services.NewFileService(logger, store, coord, workers, nil, nil, 2)
	ns := services.NewNamespaceService(logger, store, files, nil)
	if err := ns.EnsureRoot(context.Background()); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	h := New(logger, files, ns, "test")

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	app.Get("/health", h.Health)
	app.Post("/upload_file", h.UploadFile)
	app.Post("/get_file", h.GetFile)
	app.Get("/get_info", h.GetInfo)
	app.Post("/create_directory", h.CreateDirectory)
	app.Get("/get_directory", h.GetDirectory)
	app.Get("/list_directory", h.ListDirectory)
	app.Post("/move_file", h.MoveFile)
	app.Post("/copy_file", h.CopyFile)
	app.Post("/move_folder", h.MoveFolder)
	app.Post("/copy_folder", h.CopyFolder)
	app.Post("/delete_file", h.DeleteFile)
	app.Post("/delete_folder", h.DeleteFolder)
	app.Get("/datanode_status", h.DatanodeStatus)
	app.Post("/re_replicate", h.ReReplicate)
	app.Use(h.NotFound)
	return app, store
}

func uploadRequest(t *testing.T, name, dir, chunks string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if name != "" {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write(data)
	}
	_ = w.WriteField("number_of_chunks", chunks)
	if dir != "" {
		_ = w.WriteField("directory_path", dir)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload_file", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp.StatusCode, body
}

func decodeError(t *testing.T, body []byte) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to unmarshal error: %v (%s)", err, body)
	}
	return resp.Error
}
