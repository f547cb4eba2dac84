// Package metrics provides Prometheus metrics for the gradevec batch runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by a run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline
	studentsProcessed prometheus.Counter
	studentsSkipped   *prometheus.CounterVec
	recordsDecoded    *prometheus.CounterVec
	exemptOnlyCourses prometheus.Counter
	studentLatency    prometheus.Histogram

	// Matrix
	matrixRows    prometheus.Gauge
	matrixColumns prometheus.Gauge

	// Queue and workers
	queueSize    prometheus.Gauge
	queueDropped prometheus.Counter
	workerCount  prometheus.Gauge
	workerErrors prometheus.Counter

	// Verification
	verifiedStudents     *prometheus.CounterVec
	verificationMismatch prometheus.Counter
	verificationGhosts   prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of the textfile

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradevec",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.studentsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "students_processed_total",
		Help:        "Students whose transcripts produced at least one scored course",
		ConstLabels: labels,
	})

	m.studentsSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "students_skipped_total",
		Help:        "Students skipped, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.recordsDecoded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "records_decoded_total",
		Help:        "Transcript rows by grade decode outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.exemptOnlyCourses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "exempt_only_courses_total",
		Help:        "Courses with only exempt grades, written as the not-taken sentinel",
		ConstLabels: labels,
	})

	m.studentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "student_processing_milliseconds",
		Help:        "Time to load and score one student transcript",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.matrixRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matrix_rows",
		Help:        "Rows in the last assembled feature matrix",
		ConstLabels: labels,
	})

	m.matrixColumns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matrix_columns",
		Help:        "Course columns in the last assembled feature matrix",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Student jobs waiting in the queue",
		ConstLabels: labels,
	})

	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_rejected_total",
		Help:        "Student jobs rejected by a closed or cancelled queue",
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Workers in the pool",
		ConstLabels: labels,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_errors_total",
		Help:        "Jobs that ended with an error in a worker",
		ConstLabels: labels,
	})

	m.verifiedStudents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "verified_students_total",
		Help:        "Students checked against a stored matrix, by result",
		ConstLabels: labels,
	}, []string{"result"})

	m.verificationMismatch = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "verification_mismatches_total",
		Help:        "Matrix cells that differ from the recomputed score",
		ConstLabels: labels,
	})

	m.verificationGhosts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "verification_ghost_courses_total",
		Help:        "Matrix cells holding a score for a course absent from the transcript",
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})
}

// RecordStudentProcessed increments the processed students counter.
func RecordStudentProcessed() {
	globalManager.studentsProcessed.Inc()
}

// RecordStudentSkipped increments the skipped students counter for reason.
func RecordStudentSkipped(reason string) {
	globalManager.studentsSkipped.WithLabelValues(reason).Inc()
}

// RecordDecodeOutcomes adds per-outcome row counts from one transcript.
func RecordDecodeOutcomes(numeric, exempt, noValue int) {
	globalManager.recordsDecoded.WithLabelValues("numeric").Add(float64(numeric))
	globalManager.recordsDecoded.WithLabelValues("exempt").Add(float64(exempt))
	globalManager.recordsDecoded.WithLabelValues("no_value").Add(float64(noValue))
}

// RecordExemptOnlyCourses adds n exempt-only courses.
func RecordExemptOnlyCourses(n int) {
	globalManager.exemptOnlyCourses.Add(float64(n))
}

// RecordStudentLatency records per-student processing time in milliseconds.
func RecordStudentLatency(latencyMs float64) {
	globalManager.studentLatency.Observe(latencyMs)
}

// UpdateMatrixShape sets the shape gauges of the last assembled matrix.
func UpdateMatrixShape(rows, columns int) {
	globalManager.matrixRows.Set(float64(rows))
	globalManager.matrixColumns.Set(float64(columns))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueRejected increments the rejected jobs counter.
func RecordQueueRejected() {
	globalManager.queueDropped.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordVerification records the outcome of one student verification.
func RecordVerification(consistent bool, mismatches, ghosts int) {
	result := "inconsistent"
	if consistent {
		result = "consistent"
	}
	globalManager.verifiedStudents.WithLabelValues(result).Inc()
	globalManager.verificationMismatch.Add(float64(mismatches))
	globalManager.verificationGhosts.Add(float64(ghosts))
}

// RecordErrorByComponent increments the error counter for component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
