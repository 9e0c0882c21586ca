package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

// HealthMonitor classifies every known worker Active or Inactive, one
// worker at a time, and sleeps between full sweeps.
type HealthMonitor struct {
	source   registry.AddressSource
	client   workerclient.Client
	store    metadata.Store
	workers  *WorkerSet
	metrics  *metrics.Metrics
	events   *queue.Events
	logger   *logging.Logger
	interval time.Duration
	timeout  time.Duration

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthMonitor creates a monitor
func NewHealthMonitor(source registry.AddressSource, client workerclient.Client, store metadata.Store, workers *WorkerSet, interval, timeout time.Duration, m *metrics.Metrics, events *queue.Events, logger *logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		source:   source,
		client:   client,
		store:    store,
		workers:  workers,
		metrics:  m,
		events:   events,
		logger:   logger.WithComponent("health"),
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep synchronously, so the active set is populated, then
// keeps sweeping in the background until ctx is done or Stop is called.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.Sweep(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		timer := time.NewTimer(h.interval)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case <-timer.C:
				h.Sweep(ctx)
				timer.Reset(h.interval)
			}
		}
	}()
	h.logger.Info("Health monitor started", "interval", h.interval.String(), "probe_timeout", h.timeout.String())
}

// Stop ends the loop and waits for the current sweep
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}

// Sweep probes every known worker in order and persists each result before
// moving to the next
func (h *HealthMonitor) Sweep(ctx context.Context) {
	addrs, err := h.source.Addresses(ctx)
	if err != nil {
		h.logger.Warn("Failed to resolve worker addresses", "error", err)
	}
	h.workers.AddKnown(addrs)

	for _, addr := range h.workers.Known() {
		if ctx.Err() != nil {
			return
		}
		h.probe(ctx, addr)
	}
}

func (h *HealthMonitor) probe(ctx context.Context, addr string) models.WorkerState {
	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	start := time.Now()
	res, err := h.client.Probe(probeCtx, addr)
	cancel()

	state := models.WorkerActive
	if err != nil || !res.Active {
		state = models.WorkerInactive
	}
	h.metrics.RecordProbe(addr, state == models.WorkerActive, time.Since(start).Seconds())

	st := models.WorkerStatus{Address: addr, Status: state, UpdatedAt: time.Now().UTC()}
	if perr := h.store.PutWorkerStatus(ctx, st); perr != nil {
		h.logger.Error("Failed to persist worker status", "datanode", addr, "error", perr)
	}

	if prev := h.workers.Set(addr, state); prev != state {
		if err != nil {
			h.logger.Warn("Datanode status changed", "datanode", addr, "previous", prev, "current", state, "error", err)
		} else {
			h.logger.Info("Datanode status changed", "datanode", addr, "previous", prev, "current", state)
		}
		h.events.WorkerChanged(addr, prev, state)
	}
	return state
}
