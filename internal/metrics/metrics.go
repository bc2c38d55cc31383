// Package metrics exposes Prometheus metrics for the capture loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "thermosentinel"

var (
	// cyclesTotal counts capture cycles by outcome.
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of capture cycles",
		},
		[]string{"status"}, // status: measured, no_faces, decode_error, acquisition_error, cancelled
	)

	// cycleDuration is the time from capture start to the end of cleanup.
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a capture cycle in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 10, 30},
		},
	)

	// facesTotal counts detected faces by what happened to them.
	facesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faces_total",
			Help:      "Total number of detected faces",
		},
		[]string{"status"}, // status: measured, empty_region, out_of_bounds
	)

	// acquisitionRetries counts retried snapshot attempts.
	acquisitionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_retries_total",
			Help:      "Total number of retried camera acquisitions",
		},
	)

	// renderErrors counts failed sink calls.
	renderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Total number of failed presentation calls",
		},
		[]string{"sink"},
	)

	// lastTemperature is the primary statistic of the most recent face.
	lastTemperature = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forehead_temperature_celsius",
			Help:      "Most recent forehead temperature in degrees Celsius",
		},
	)

	allMetrics = []prometheus.Collector{
		cyclesTotal,
		cycleDuration,
		facesTotal,
		acquisitionRetries,
		renderErrors,
		lastTemperature,
	}
)

// Cycle outcomes.
const (
	CycleMeasured    = "measured"
	CycleNoFaces     = "no_faces"
	CycleDecodeError = "decode_error"
	CycleDetectError = "detect_error"
	CycleAcquisition = "acquisition_error"
	CycleCancelled   = "cancelled"
)

// Face outcomes.
const (
	FaceMeasured    = "measured"
	FaceEmpty       = "empty_region"
	FaceOutOfBounds = "out_of_bounds"
)

// NewRegistry returns a registry holding every metric of this package plus
// the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// RecordCycle records a finished cycle.
func RecordCycle(status string, durationSeconds float64) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(durationSeconds)
}

// RecordFace records the outcome of measuring one face.
func RecordFace(status string) {
	facesTotal.WithLabelValues(status).Inc()
}

// RecordTemperature sets the latest forehead temperature.
func RecordTemperature(celsius float64) {
	lastTemperature.Set(celsius)
}

// RecordRetry records one retried acquisition.
func RecordRetry() {
	acquisitionRetries.Inc()
}

// RecordRenderError records a failed sink.
func RecordRenderError(sink string) {
	renderErrors.WithLabelValues(sink).Inc()
}
