package metadata

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/config"
	"github.com/soltixdb/chunkfs/internal/models"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
)

// setupTestEtcd creates an embedded etcd server for testing
func setupTestEtcd(t *testing.T) ([]string, func()) {
	tmpDir, err := os.MkdirTemp("", "etcd-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	cfg := embed.NewConfig()
	cfg.Dir = tmpDir

	clientURL, _ := url.Parse("http://127.0.0.1:0")
	peerURL, _ := url.Parse("http://127.0.0.1:0")
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.ListenPeerUrls = []url.URL{*peerURL}

	cfg.LogLevel = "error"
	cfg.Logger = "zap"

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		t.Fatalf("Failed to start etcd: %v", err)
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Close()
		_ = os.RemoveAll(tmpDir)
		t.Fatal("Etcd server took too long to start")
	}

	endpoints := []string{e.Clients[0].Addr().String()}
	cleanup := func() {
		e.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return endpoints, cleanup
}

func configFor(backend string) config.MetadataConfig {
	return config.MetadataConfig{Backend: backend, CacheTTL: time.Minute}
}

func etcdConfigFor(endpoints []string) config.EtcdConfig {
	return config.EtcdConfig{Endpoints: endpoints, DialTimeout: 5 * time.Second}
}

func TestEtcdStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	endpoints, cleanup := setupTestEtcd(t)
	defer cleanup()

	client, err := NewEtcdClient(etcdConfigFor(endpoints))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = client.Close() }()

	runStoreContract(t, func(t *testing.T) Store {
		// every subtest starts from an empty keyspace
		if _, err := client.Delete(context.Background(), keyRoot+"/", clientv3.WithPrefix()); err != nil {
			t.Fatalf("Failed to reset keyspace: %v", err)
		}
		s := NewEtcdStoreWithClient(client, time.Minute)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestEtcdStoreFactoryAndCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	endpoints, cleanup := setupTestEtcd(t)
	defer cleanup()

	store, err := New(configFor("etcd"), etcdConfigFor(endpoints))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	s := store.(*EtcdStore)
	ctx := context.Background()

	f := &models.File{ID: "f1", Name: "n", ChunkCount: 1, DirectoryPath: "/"}
	if err := s.CreateFile(ctx, f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := s.GetFile(ctx, "f1"); err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if _, ok := s.files.Get("f1"); !ok {
		t.Error("expected file to be cached after read")
	}

	f.DirectoryPath = "/moved"
	if err := s.UpdateFile(ctx, f); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if _, ok := s.files.Get("f1"); ok {
		t.Error("expected cache invalidation on update")
	}
	got, _ := s.GetFile(ctx, "f1")
	if got.DirectoryPath != "/moved" {
		t.Errorf("expected /moved, got %s", got.DirectoryPath)
	}
}

func TestEtcdKeysEscapeSegments(t *testing.T) {
	if got := directoryKey("/a/b"); got != "/chunkfs/directories/%2Fa%2Fb" {
		t.Errorf("unexpected directory key %s", got)
	}
	if got := chunkKeyFor(models.ChunkLocation{FileID: "f", ChunkIndex: 3, WorkerAddress: "10.0.0.1:5001"}); got != "/chunkfs/chunks/f/000003/10.0.0.1:5001" {
		t.Errorf("unexpected chunk key %s", got)
	}
	if got := nameIndexKey("/", "a b"); got != "/chunkfs/names/%2F/a%20b" {
		t.Errorf("unexpected name key %s", got)
	}
}
