package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/utils"
	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/client/pkg/v3/types"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
)

// setupEmbeddedEtcd starts an embedded etcd server for testing
func setupEmbeddedEtcd(t *testing.T) *clientv3.Client {
	t.Helper()

	cfg := embed.NewConfig()
	cfg.Dir = t.TempDir()
	cfg.LogLevel = "error"
	cfg.ListenClientUrls, _ = types.NewURLs([]string{"http://127.0.0.1:0"})
	cfg.ListenPeerUrls, _ = types.NewURLs([]string{"http://127.0.0.1:0"})

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		t.Fatalf("Failed to start embedded etcd: %v", err)
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Close()
		t.Fatal("Etcd server took too long to start")
	}

	endpoints := []string{}
	for _, listener := range e.Clients {
		endpoints = append(endpoints, "http://"+listener.Addr().String())
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		e.Close()
		t.Fatalf("Failed to create etcd client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		e.Close()
	})
	return client
}

type fakeStats struct {
	chunks int
	bytes  int64
}

func (f fakeStats) Stats() (int, int64, error) { return f.chunks, f.bytes, nil }

func readNode(t *testing.T, client *clientv3.Client, id string) (models.NodeInfo, bool) {
	t.Helper()
	resp, err := client.Get(context.Background(), utils.NodePrefix+id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(resp.Kvs) == 0 {
		return models.NodeInfo{}, false
	}
	var info models.NodeInfo
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	return info, true
}

func TestRegister(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	client := setupEmbeddedEtcd(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewNodeRegistration(client, models.NodeInfo{
		ID:          "dn-1",
		HTTPAddress: "127.0.0.1:5001",
		GRPCAddress: "127.0.0.1:5101",
		Status:      "active",
	}, fakeStats{chunks: 4, bytes: 1024}, logging.NewNop())

	if err := reg.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}

	info, ok := readNode(t, client, "dn-1")
	if !ok {
		t.Fatal("expected node record")
	}
	assert.Equal(t, "127.0.0.1:5001", info.HTTPAddress)
	assert.Equal(t, 4, info.Chunks)
	assert.Equal(t, int64(1024), info.Bytes)
	assert.False(t, info.UpdatedAt.IsZero())

	resp, _ := client.Get(context.Background(), utils.NodePrefix+"dn-1")
	assert.NotZero(t, resp.Kvs[0].Lease)
}

func TestSetStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	client := setupEmbeddedEtcd(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewNodeRegistration(client, models.NodeInfo{ID: "dn-1", Status: "active"}, nil, logging.NewNop())
	if err := reg.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.SetStatus(ctx, "inactive"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	info, _ := readNode(t, client, "dn-1")
	assert.Equal(t, "inactive", info.Status)
}

func TestDeregister(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	client := setupEmbeddedEtcd(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewNodeRegistration(client, models.NodeInfo{ID: "dn-2"}, nil, logging.NewNop())
	if err := reg.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Deregister(context.Background()); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	_, ok := readNode(t, client, "dn-2")
	assert.False(t, ok)
}

func TestLeaseExpiresWithoutKeepAlive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded etcd in short mode")
	}
	client := setupEmbeddedEtcd(t)

	ctx, cancel := context.WithCancel(context.Background())
	reg := NewNodeRegistration(client, models.NodeInfo{ID: "dn-3"}, nil, logging.NewNop())
	if err := reg.Register(ctx); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// revoking the lease is what expiry does, without waiting the TTL
	cancel()
	if _, err := client.Revoke(context.Background(), reg.leaseID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	_, ok := readNode(t, client, "dn-3")
	assert.False(t, ok)
}
