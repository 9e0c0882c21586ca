// Package metrics holds the Prometheus collectors of the namenode and datanode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	UploadsTotal        *prometheus.CounterVec   // chunkfs_uploads_total{result}
	ChunksPlacedTotal   *prometheus.CounterVec   // chunkfs_chunks_placed_total{result}
	ReplicationTotal    *prometheus.CounterVec   // chunkfs_replication_attempts_total{source,status}
	ReplicationInFlight prometheus.Gauge         // chunkfs_replication_in_flight
	RecoveryRunsTotal   *prometheus.CounterVec   // chunkfs_recovery_runs_total{outcome}
	ChunksRepaired      prometheus.Counter       // chunkfs_chunks_repaired_total
	ReadsTotal          *prometheus.CounterVec   // chunkfs_reads_total{result}
	ReadFallbacksTotal  prometheus.Counter       // chunkfs_read_fallbacks_total
	WorkerUp            *prometheus.GaugeVec     // chunkfs_worker_up{address}
	ProbeDuration       *prometheus.HistogramVec // chunkfs_probe_duration_seconds{address}
	WorkerRequests      *prometheus.CounterVec   // chunkfs_worker_requests_total{op,result}
}

// New registers the coordinator collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the coordinator collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_uploads_total",
			Help: "Uploads by result",
		}, []string{"result"}),

		ChunksPlacedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_chunks_placed_total",
			Help: "Primary chunk pushes by result",
		}, []string{"result"}),

		ReplicationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_replication_attempts_total",
			Help: "Replica pushes by source and status",
		}, []string{"source", "status"}),

		ReplicationInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "chunkfs_replication_in_flight",
			Help: "Replica pushes currently running",
		}),

		RecoveryRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_recovery_runs_total",
			Help: "Reconcile passes by outcome",
		}, []string{"outcome"}),

		ChunksRepaired: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkfs_chunks_repaired_total",
			Help: "Chunks copied onto a worker during recovery",
		}),

		ReadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_reads_total",
			Help: "File reads by result",
		}, []string{"result"}),

		ReadFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkfs_read_fallbacks_total",
			Help: "Chunk reads served by a location other than the primary",
		}),

		WorkerUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chunkfs_worker_up",
			Help: "1 if the worker was classified Active by the last probe",
		}, []string{"address"}),

		ProbeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chunkfs_probe_duration_seconds",
			Help:    "Liveness probe latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"address"}),

		WorkerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_worker_requests_total",
			Help: "Chunk requests sent to workers by operation and result",
		}, []string{"op", "result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordUpload counts a finished upload
func (m *Metrics) RecordUpload(err error) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(result(err)).Inc()
}

// RecordPlacement counts a primary chunk push
func (m *Metrics) RecordPlacement(err error) {
	if m == nil {
		return
	}
	m.ChunksPlacedTotal.WithLabelValues(result(err)).Inc()
}

// RecordReplication counts a replica push
func (m *Metrics) RecordReplication(source, status string) {
	if m == nil {
		return
	}
	m.ReplicationTotal.WithLabelValues(source, status).Inc()
}

// ReplicationStarted and ReplicationDone track in-flight pushes
func (m *Metrics) ReplicationStarted() {
	if m == nil {
		return
	}
	m.ReplicationInFlight.Inc()
}

func (m *Metrics) ReplicationDone() {
	if m == nil {
		return
	}
	m.ReplicationInFlight.Dec()
}

// RecordRecovery counts a reconcile pass and the chunks it repaired
func (m *Metrics) RecordRecovery(outcome string, repaired int) {
	if m == nil {
		return
	}
	m.RecoveryRunsTotal.WithLabelValues(outcome).Inc()
	m.ChunksRepaired.Add(float64(repaired))
}

// RecordRead counts a file read and the chunks served by fallback locations
func (m *Metrics) RecordRead(err error, fallbacks int) {
	if m == nil {
		return
	}
	m.ReadsTotal.WithLabelValues(result(err)).Inc()
	m.ReadFallbacksTotal.Add(float64(fallbacks))
}

// RecordProbe records a probe outcome for a worker
func (m *Metrics) RecordProbe(address string, active bool, seconds float64) {
	if m == nil {
		return
	}
	up := 0.0
	if active {
		up = 1
	}
	m.WorkerUp.WithLabelValues(address).Set(up)
	m.ProbeDuration.WithLabelValues(address).Observe(seconds)
}

// RecordWorkerRequest counts a chunk request sent to a worker
func (m *Metrics) RecordWorkerRequest(op string, err error) {
	if m == nil {
		return
	}
	m.WorkerRequests.WithLabelValues(op, result(err)).Inc()
}
