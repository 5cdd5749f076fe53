package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture session metrics
var (
	// Photo captures by result
	PhotosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "photos_total",
			Help:      "Total photo capture attempts",
		},
		[]string{"status"},
	)

	// Finished recordings by result
	RecordingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "recordings_total",
			Help:      "Total finished recordings",
		},
		[]string{"status"},
	)

	RecordingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "recording_duration_seconds",
			Help:      "Recording duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900},
		},
	)

	// Acquire and bind failures
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Total session failures by stage",
		},
		[]string{"stage"},
	)

	BindsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "binds_total",
			Help:      "Total successful camera binds",
		},
		[]string{"facing"},
	)

	TorchTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "torch_toggles_total",
			Help:      "Total torch toggle requests",
		},
		[]string{"status"},
	)

	PermissionResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "camgo",
			Subsystem: "permissions",
			Name:      "results_total",
			Help:      "Total permission answers",
		},
		[]string{"kind", "granted"},
	)

	// Current recording state (1 = a recording handle exists)
	Recording = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "camgo",
			Subsystem: "session",
			Name:      "recording",
			Help:      "Whether a recording is in progress",
		},
	)
)

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordPhoto records a photo capture outcome
func RecordPhoto(err error) {
	PhotosTotal.WithLabelValues(status(err)).Inc()
}

// RecordRecording records a finished recording
func RecordRecording(err error, durationSec float64) {
	RecordingsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		RecordingDuration.Observe(durationSec)
	}
}

// RecordFailure records a failure at stage ("acquire", "bind", "record_start", ...)
func RecordFailure(stage string) {
	FailuresTotal.WithLabelValues(stage).Inc()
}

func RecordBind(facing string) {
	BindsTotal.WithLabelValues(facing).Inc()
}

func RecordTorchToggle(err error) {
	TorchTogglesTotal.WithLabelValues(status(err)).Inc()
}

func RecordPermission(kind string, granted bool) {
	g := "false"
	if granted {
		g = "true"
	}
	PermissionResultsTotal.WithLabelValues(kind, g).Inc()
}

func SetRecording(active bool) {
	if active {
		Recording.Set(1)
		return
	}
	Recording.Set(0)
}
