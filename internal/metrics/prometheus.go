package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the Minmeet client
type Metrics struct {
	// Capture metrics
	ChunksCaptured prometheus.Counter
	FinalChunks    prometheus.Counter
	ChunkDuration  prometheus.Histogram
	ChunkSize      prometheus.Histogram

	// Upload metrics
	UploadsTotal   prometheus.Counter
	UploadFailures prometheus.Counter
	UploadDuration prometheus.Histogram

	// Sync metrics
	SyncUpdates   *prometheus.CounterVec
	SyncFallbacks prometheus.Counter

	// Reconciler metrics
	TranscriptEntries     prometheus.Counter
	DuplicateEntries      prometheus.Counter
	QAReplacements        prometheus.Counter
	FinalizeNotifications prometheus.Counter

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionDuration   prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_chunks_captured_total",
			Help: "Total number of audio segments cut by the capture pipeline",
		}),
		FinalChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_final_chunks_total",
			Help: "Total number of final chunks emitted on session stop",
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "minmeet_chunk_duration_seconds",
			Help:    "Capture duration of emitted audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "minmeet_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		UploadsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_uploads_total",
			Help: "Total number of chunk upload attempts",
		}),
		UploadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_upload_failures_total",
			Help: "Total number of failed chunk uploads (chunks lost)",
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "minmeet_upload_duration_seconds",
			Help:    "Duration of chunk upload requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~1 minute
		}),

		SyncUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "minmeet_sync_updates_total",
			Help: "Total number of update payloads received, by transport",
		}, []string{"transport"}),
		SyncFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_sync_fallbacks_total",
			Help: "Total number of push-to-poll transport fallbacks",
		}),

		TranscriptEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_transcript_entries_total",
			Help: "Total number of transcript entries appended to canonical state",
		}),
		DuplicateEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_duplicate_entries_total",
			Help: "Total number of duplicate transcript entries dropped",
		}),
		QAReplacements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_qa_replacements_total",
			Help: "Total number of Q&A list replacements applied",
		}),
		FinalizeNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_finalize_notifications_total",
			Help: "Total number of finalize notifications emitted",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_sessions_started_total",
			Help: "Total number of meeting sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minmeet_sessions_completed_total",
			Help: "Total number of meeting sessions completed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "minmeet_session_duration_seconds",
			Help:    "Duration of meeting sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~3 hours
		}),
	}
}

// RecordChunk records an emitted audio chunk
func (m *Metrics) RecordChunk(durationSeconds float64, sizeBytes int, isFinal bool) {
	m.ChunksCaptured.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
	if isFinal {
		m.FinalChunks.Inc()
	}
}

// RecordUpload records a chunk upload attempt
func (m *Metrics) RecordUpload(durationSeconds float64, failed bool) {
	m.UploadsTotal.Inc()
	m.UploadDuration.Observe(durationSeconds)
	if failed {
		m.UploadFailures.Inc()
	}
}

// RecordSyncUpdate records one received update payload
func (m *Metrics) RecordSyncUpdate(transport string) {
	m.SyncUpdates.WithLabelValues(transport).Inc()
}

// RecordSyncFallback records a push-to-poll fallback
func (m *Metrics) RecordSyncFallback() {
	m.SyncFallbacks.Inc()
}

// RecordEntry records an appended transcript entry
func (m *Metrics) RecordEntry() {
	m.TranscriptEntries.Inc()
}

// RecordQAReplacement records a Q&A list replacement
func (m *Metrics) RecordQAReplacement() {
	m.QAReplacements.Inc()
}

// RecordFinalize records a finalize notification
func (m *Metrics) RecordFinalize() {
	m.FinalizeNotifications.Inc()
}

// RecordSessionStarted increments the sessions started counter
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records a completed session and its duration
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
}
