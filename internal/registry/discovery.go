package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// AddressSource yields the worker addresses the health monitor probes
type AddressSource interface {
	Addresses(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed address list
type StaticSource []string

func (s StaticSource) Addresses(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Discovery merges the static worker list with datanodes registered in etcd.
// Static addresses keep their configured order; discovered ones follow sorted.
type Discovery struct {
	client       *clientv3.Client
	static       []string
	transport    string
	pollInterval time.Duration
	logger       *logging.Logger

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
}

// NewDiscovery creates a discovery for the given worker client transport
func NewDiscovery(client *clientv3.Client, static []string, transport string, pollInterval time.Duration, logger *logging.Logger) *Discovery {
	return &Discovery{
		client:       client,
		static:       append([]string(nil), static...),
		transport:    transport,
		pollInterval: pollInterval,
		logger:       logger.WithComponent("discovery"),
	}
}

// Nodes lists registered datanodes sorted by id
func (d *Discovery) Nodes(ctx context.Context) ([]models.NodeInfo, error) {
	resp, err := d.client.Get(ctx, utils.NodePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]models.NodeInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var n models.NodeInfo
		if err := json.Unmarshal(kv.Value, &n); err != nil {
			d.logger.Warn("Skipping malformed node record", "key", string(kv.Key), "error", err)
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// Addresses returns static plus discovered addresses. Lookups are cached for the
// poll interval; on an etcd error the last good list is served.
func (d *Discovery) Addresses(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	if d.cached != nil && time.Since(d.fetchedAt) < d.pollInterval {
		out := append([]string(nil), d.cached...)
		d.mu.Unlock()
		return out, nil
	}
	d.mu.Unlock()

	nodes, err := d.Nodes(ctx)
	if err != nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.cached != nil {
			d.logger.Warn("Discovery failed, using cached workers", "error", err)
			return append([]string(nil), d.cached...), nil
		}
		return append([]string(nil), d.static...), err
	}

	addrs := mergeAddresses(d.static, nodes, d.transport)

	d.mu.Lock()
	d.cached = addrs
	d.fetchedAt = time.Now()
	d.mu.Unlock()
	return append([]string(nil), addrs...), nil
}

func mergeAddresses(static []string, nodes []models.NodeInfo, transport string) []string {
	seen := make(map[string]bool, len(static)+len(nodes))
	out := make([]string, 0, len(static)+len(nodes))
	for _, a := range static {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	var discovered []string
	for _, n := range nodes {
		a := n.AddressFor(transport)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		discovered = append(discovered, a)
	}
	sort.Strings(discovered)
	return append(out, discovered...)
}
