package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ScanSkipped   = "skipped"
	ScanEmpty     = "empty"
	ScanRepeat    = "repeat"
	ScanAccepted  = "accepted"
	ScanDuplicate = "duplicate"
	ScanRejected  = "rejected"

	OutcomeComplete   = "complete"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
)

var (
	registerOnce sync.Once

	chunksEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrlink",
			Subsystem: "encode",
			Name:      "chunks_total",
			Help:      "Chunks produced by the framer.",
		},
		[]string{"variant", "mode"},
	)
	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qrlink",
			Subsystem: "encode",
			Name:      "render_duration_seconds",
			Help:      "Wall time to render all images of one payload.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"variant"},
	)
	scanFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrlink",
			Subsystem: "scan",
			Name:      "frames_total",
			Help:      "Frames read by the scan loop, by result.",
		},
		[]string{"result"},
	)
	reassemblies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrlink",
			Subsystem: "reassembly",
			Name:      "runs_total",
			Help:      "Finished reassemblies, by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(chunksEncoded, renderDuration, scanFrames, reassemblies)
	})
}

func RecordChunksEncoded(variant, mode string, n int) {
	RegisterMetrics()
	chunksEncoded.WithLabelValues(variant, mode).Add(float64(n))
}

func RecordRender(variant string, d time.Duration) {
	RegisterMetrics()
	renderDuration.WithLabelValues(variant).Observe(d.Seconds())
}

func RecordScanFrame(result string) {
	RegisterMetrics()
	scanFrames.WithLabelValues(result).Inc()
}

func RecordReassembly(outcome string) {
	RegisterMetrics()
	reassemblies.WithLabelValues(outcome).Inc()
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
