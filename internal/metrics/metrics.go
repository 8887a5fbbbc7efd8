// Package metrics exposes Prometheus instrumentation for the sampling
// pipeline: reads per source, drains, sink writes and buffer depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Read results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultData    = "data"
	ResultEmpty   = "empty"
)

var (
	// ReadsTotal counts polling-loop read attempts.
	ReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerostat_source_reads_total",
			Help: "Total number of source read attempts by result",
		},
		[]string{"source", "result"},
	)

	// DrainsTotal counts buffer drains, whoever the caller is.
	DrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerostat_source_drains_total",
			Help: "Total number of buffer drains by result",
		},
		[]string{"source", "result"},
	)

	// BufferDepth is the number of readings waiting for the next drain.
	BufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aerostat_source_buffer_depth",
			Help: "Readings currently buffered per source",
		},
		[]string{"source"},
	)

	// SourceState is 0 while uninitialized, 1 when ready and 2 when failed.
	SourceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aerostat_source_state",
			Help: "Source lifecycle state (0 uninitialized, 1 ready, 2 failed)",
		},
		[]string{"source"},
	)

	// SinkWritesTotal counts points handed to a sink.
	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerostat_sink_writes_total",
			Help: "Total number of sink writes by result",
		},
		[]string{"sink", "result"},
	)

	// DroppedAveragesTotal counts averages the reporter refused to forward.
	DroppedAveragesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aerostat_dropped_averages_total",
			Help: "Averages not forwarded to the sink because they were not scalar",
		},
		[]string{"source"},
	)

	// TicksTotal counts reporting cycles.
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aerostat_reporter_ticks_total",
			Help: "Total number of reporting ticks",
		},
	)
)
