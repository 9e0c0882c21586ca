package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/chunkstore"
	"github.com/soltixdb/chunkfs/internal/compression"
	"github.com/soltixdb/chunkfs/internal/coordinator"
	"github.com/soltixdb/chunkfs/internal/datanode"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/router"
	"github.com/soltixdb/chunkfs/internal/services"
	"github.com/soltixdb/chunkfs/internal/workerclient"
	"github.com/stretchr/testify/assert"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return lis
}

// startNameNode runs a namenode backed by one real datanode and returns its address
func startNameNode(t *testing.T) string {
	t.Helper()
	logger := logging.NewNop()

	store, err := chunkstore.NewDiskStore(t.TempDir(), compression.None)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	dn := datanode.NewHTTPApp(datanode.NewService(store, &datanode.Identity{NodeID: "dn"}, logger, nil), logger, nil, datanode.HTTPConfig{})
	dnLis := listen(t)
	go func() { _ = dn.Listener(dnLis) }()
	t.Cleanup(func() { _ = dn.Shutdown() })

	meta := metadata.NewMemoryStore()
	client := workerclient.NewHTTPClient(2 * time.Second)
	coord := coordinator.New(context.Background(), coordinator.Config{
		ReplicationFactor: 1,
		MaxInFlight:       1,
		ProbeInterval:     time.Hour,
		ProbeTimeout:      time.Second,
	}, coordinator.Deps{Store: meta, Client: client, Source: registry.StaticSource{dnLis.Addr().String()}, Logger: logger})
	coord.Monitor.Sweep(context.Background())
	t.Cleanup(coord.Stop)

	files := services.NewFileService(logger, meta, coord, client, nil, nil, 1)
	ns := services.NewNamespaceService(logger, meta, files, nil)
	if err := ns.EnsureRoot(context.Background()); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	app := router.New(logger, files, ns, router.Options{Version: "test"})
	lis := listen(t)
	go func() { _ = app.Listener(lis) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return lis.Addr().String()
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIRoundTrip(t *testing.T) {
	server := startNameNode(t)
	tmp := t.TempDir()
	local := filepath.Join(tmp, "report.txt")
	content := []byte(strings.Repeat("chunkfs ", 100))
	if err := os.WriteFile(local, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := run(t, server, "mkdir", "/docs")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	assert.Contains(t, out, "Directory '/docs' created successfully")

	out, err = run(t, server, "upload", local, "--chunks", "3", "--dir", "/docs")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assert.Contains(t, out, "data_id: ")

	out, err = run(t, server, "ls", "/docs")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	assert.Equal(t, "report.txt\n", out)

	target := filepath.Join(tmp, "copy.txt")
	if _, err := run(t, server, "get", "report.txt", "--dir", "/docs", "-o", target); err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := os.ReadFile(target)
	assert.Equal(t, content, got)

	out, err = run(t, server, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	assert.Contains(t, out, "Active")

	out, err = run(t, server, "tree")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	assert.Contains(t, out, "/docs\n  report.txt\n")
}

func TestCLIReportsServiceErrors(t *testing.T) {
	server := startNameNode(t)

	_, err := run(t, server, "get", "missing.txt")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "FileNotFound", apiErr.Detail.Code)
	assert.Contains(t, apiErr.Error(), "NotFound")

	_, err = run(t, server, "mkdir", "/")
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
}

func TestCLIUnreachableServer(t *testing.T) {
	lis := listen(t)
	addr := lis.Addr().String()
	_ = lis.Close()

	_, err := run(t, addr, "--timeout", "500ms", "status")
	assert.Error(t, err)
	var apiErr *apiError
	assert.False(t, errors.As(err, &apiErr))
}

func TestBenchShortRun(t *testing.T) {
	server := startNameNode(t)

	out, err := run(t, server, "bench", "--duration", "300ms", "--size", "1024", "--chunks", "2",
		"--upload-workers", "1", "--download-workers", "1")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	assert.Contains(t, out, "=== Upload Operations ===")
	assert.Contains(t, out, "=== Download Operations ===")
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 5.0, percentile(sorted, 50))
	assert.Equal(t, 10.0, percentile(sorted, 99))
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 0.0, percentile(nil, 50))
}
