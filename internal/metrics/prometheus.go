package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics contains all Prometheus metrics for the transcoding service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Invocation metrics
	Invocations        *prometheus.CounterVec
	InvocationDuration prometheus.Histogram
	StageTransitions   *prometheus.CounterVec

	// Object metrics
	ObjectsProcessed prometheus.Counter
	ObjectFailures   *prometheus.CounterVec

	// Hand-off queue metrics
	BytesFetched  prometheus.Counter
	ChunksBridged prometheus.Counter
	QueueDepth    prometheus.Gauge

	// Decode metrics
	SamplesDecoded prometheus.Counter
	SamplesSkipped prometheus.Counter

	// Encode metrics
	EncodeDuration *prometheus.HistogramVec
	EncodedBytes   *prometheus.HistogramVec

	// Delivery metrics
	ArchivesDelivered prometheus.Counter
	ArchiveSize       prometheus.Histogram
	ObjectsDelivered  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mp3mm_invocations_total",
			Help: "Total number of invocations by outcome",
		}, []string{"outcome"}),
		InvocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mp3mm_invocation_duration_seconds",
			Help:    "Duration of whole invocations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mp3mm_stage_transitions_total",
			Help: "Total number of pipeline state transitions by target stage",
		}, []string{"stage"}),

		ObjectsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_objects_processed_total",
			Help: "Total number of source objects transcoded and staged",
		}),
		ObjectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mp3mm_object_failures_total",
			Help: "Total number of source objects that failed, by stage",
		}, []string{"stage"}),

		BytesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_bytes_fetched_total",
			Help: "Total number of bytes pulled from the object store",
		}),
		ChunksBridged: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_chunks_bridged_total",
			Help: "Total number of chunks passed through the hand-off queue",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mp3mm_handoff_queue_depth",
			Help: "Current number of chunks waiting in the hand-off queue",
		}),

		SamplesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_samples_decoded_total",
			Help: "Total number of PCM samples decoded",
		}),
		SamplesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_samples_skipped_total",
			Help: "Total number of corrupt samples skipped by the lenient policy",
		}),

		EncodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mp3mm_encode_duration_seconds",
			Help:    "Time spent encoding one logical output",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"role"}),
		EncodedBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mp3mm_encoded_size_bytes",
			Help:    "Size of encoded MP3 outputs",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
		}, []string{"role"}),

		ArchivesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_archives_delivered_total",
			Help: "Total number of archives uploaded",
		}),
		ArchiveSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mp3mm_archive_size_bytes",
			Help:    "Size of uploaded archives",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		ObjectsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "mp3mm_objects_delivered_total",
			Help: "Total number of encoded objects uploaded in per-object mode",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mp3mm_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mp3mm_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mp3mm_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// Handler exposes the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Push sends the current registry contents to a Prometheus Pushgateway
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// RecordInvocation records the outcome and duration of an invocation
func (m *Metrics) RecordInvocation(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(outcome).Inc()
	m.InvocationDuration.Observe(durationSeconds)
}

// RecordTransition counts a pipeline state transition
func (m *Metrics) RecordTransition(stage string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(stage).Inc()
}

// RecordObjectProcessed increments the processed objects counter
func (m *Metrics) RecordObjectProcessed() {
	if m == nil {
		return
	}
	m.ObjectsProcessed.Inc()
}

// RecordObjectFailure counts a failed object by the stage that failed
func (m *Metrics) RecordObjectFailure(stage string) {
	if m == nil {
		return
	}
	m.ObjectFailures.WithLabelValues(stage).Inc()
}

// RecordChunk records one chunk pulled from the store
func (m *Metrics) RecordChunk(sizeBytes int) {
	if m == nil {
		return
	}
	m.ChunksBridged.Inc()
	m.BytesFetched.Add(float64(sizeBytes))
}

// SetQueueDepth sets the current hand-off queue depth
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RecordSamples records decoded and skipped sample counts for one object
func (m *Metrics) RecordSamples(decoded, skipped int) {
	if m == nil {
		return
	}
	m.SamplesDecoded.Add(float64(decoded))
	m.SamplesSkipped.Add(float64(skipped))
}

// RecordEncode records one encoded output
func (m *Metrics) RecordEncode(role string, durationSeconds float64, sizeBytes int) {
	if m == nil {
		return
	}
	m.EncodeDuration.WithLabelValues(role).Observe(durationSeconds)
	m.EncodedBytes.WithLabelValues(role).Observe(float64(sizeBytes))
}

// RecordArchiveDelivered records an uploaded archive
func (m *Metrics) RecordArchiveDelivered(sizeBytes int64) {
	if m == nil {
		return
	}
	m.ArchivesDelivered.Inc()
	m.ArchiveSize.Observe(float64(sizeBytes))
}

// RecordObjectDelivered increments the per-object upload counter
func (m *Metrics) RecordObjectDelivered() {
	if m == nil {
		return
	}
	m.ObjectsDelivered.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
