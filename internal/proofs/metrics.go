package proofs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guildhall"

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proofs",
			Name:      "uploads_total",
			Help:      "Proof uploads by status",
		},
		[]string{"status"},
	)

	uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proofs",
			Name:      "upload_bytes",
			Help:      "Size of stored proofs",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
		},
	)
)

func recordUpload(status string, size int) {
	uploadsTotal.WithLabelValues(status).Inc()
	if size > 0 {
		uploadBytes.Observe(float64(size))
	}
}
