package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guildhall"

var (
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total webhook deliveries by event kind and status",
		},
		[]string{"kind", "status"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver a notification to one endpoint",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	channelsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "channels_skipped_total",
			Help:      "Dispatches skipped because the channel has no endpoint configured",
		},
		[]string{"channel"},
	)
)

// recordNotificationSent records a delivery metric.
func recordNotificationSent(kind, status string) {
	notificationsSent.WithLabelValues(kind, status).Inc()
}

// recordNotificationDuration records notification send duration.
func recordNotificationDuration(kind string, duration time.Duration) {
	notificationSendDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func recordChannelSkipped(channel Channel) {
	channelsSkipped.WithLabelValues(string(channel)).Inc()
}
