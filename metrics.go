package chunkparse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by chunk parses.
type Metrics struct {
	ChunksParsed      prometheus.Counter
	ChunksFailed      prometheus.Counter
	RowsDecoded       prometheus.Counter
	ExtraChunkLoads   prometheus.Counter
	ChunkParseSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksParsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chunkparse",
			Name:      "chunks_parsed_total",
			Help:      "Number of chunks parsed, including those that stopped on a transient failure.",
		}),
		ChunksFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chunkparse",
			Name:      "chunks_failed_total",
			Help:      "Number of chunks that stopped on a transient decode failure.",
		}),
		RowsDecoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chunkparse",
			Name:      "rows_decoded_total",
			Help:      "Number of rows written by chunk parses.",
		}),
		ExtraChunkLoads: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chunkparse",
			Name:      "extra_chunk_loads_total",
			Help:      "Number of following chunks pulled in to finish a block.",
		}),
		ChunkParseSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chunkparse",
			Name:      "chunk_parse_duration_seconds",
			Help:      "Time spent parsing one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) observe(res ChunkResult, seconds float64) {
	m.ChunksParsed.Inc()
	if res.Err != nil {
		m.ChunksFailed.Inc()
	}
	m.RowsDecoded.Add(float64(res.Rows))
	m.ExtraChunkLoads.Add(float64(res.ExtraChunks))
	m.ChunkParseSeconds.Observe(seconds)
}
