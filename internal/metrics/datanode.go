package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DataNodeMetrics holds the worker collectors. A nil value records nothing.
type DataNodeMetrics struct {
	Registry *prometheus.Registry

	ChunkOps     *prometheus.CounterVec // chunkfs_datanode_chunk_ops_total{op,result}
	BytesWritten prometheus.Counter     // chunkfs_datanode_bytes_written_total
	BytesRead    prometheus.Counter     // chunkfs_datanode_bytes_read_total
	Active       prometheus.Gauge       // chunkfs_datanode_active
}

// NewDataNode registers the worker collectors on a fresh registry
func NewDataNode() *DataNodeMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &DataNodeMetrics{
		Registry: reg,
		ChunkOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkfs_datanode_chunk_ops_total",
			Help: "Chunk operations served by operation and result",
		}, []string{"op", "result"}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkfs_datanode_bytes_written_total",
			Help: "Chunk bytes accepted",
		}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "chunkfs_datanode_bytes_read_total",
			Help: "Chunk bytes served",
		}),
		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "chunkfs_datanode_active",
			Help: "1 while the node reports itself active",
		}),
	}
}

// RecordOp counts a chunk operation
func (m *DataNodeMetrics) RecordOp(op string, err error, bytesWritten, bytesRead int) {
	if m == nil {
		return
	}
	m.ChunkOps.WithLabelValues(op, result(err)).Inc()
	if err == nil {
		m.BytesWritten.Add(float64(bytesWritten))
		m.BytesRead.Add(float64(bytesRead))
	}
}

// SetActive mirrors the self-reported status
func (m *DataNodeMetrics) SetActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.Active.Set(1)
	} else {
		m.Active.Set(0)
	}
}
