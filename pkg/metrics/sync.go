package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records metadata for connector sync runs.
type SyncMetrics struct {
	duration        *prometheus.HistogramVec
	success         *prometheus.CounterVec
	failure         *prometheus.CounterVec
	recordsUpserted *prometheus.CounterVec
	recordErrors    *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Duration of connector sync runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_success",
		Help: "Successful connector sync runs.",
	}, []string{"connector"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_failure",
		Help: "Failed connector sync runs.",
	}, []string{"connector"})
	recordsUpserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_upserted",
		Help: "Records created or updated in the downstream store.",
	}, []string{"connector"})
	recordErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_record_errors",
		Help: "Records that failed to upsert in the downstream store.",
	}, []string{"connector"})
	reg.MustRegister(duration, success, failure, recordsUpserted, recordErrors)
	return &SyncMetrics{
		duration:        duration,
		success:         success,
		failure:         failure,
		recordsUpserted: recordsUpserted,
		recordErrors:    recordErrors,
	}
}

// ObserveDuration records the duration for the named connector.
func (s *SyncMetrics) ObserveDuration(connector string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(connector)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named connector.
func (s *SyncMetrics) IncSuccess(connector string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(connector)).Inc()
}

// IncFailure increments the failure counter for the named connector.
func (s *SyncMetrics) IncFailure(connector string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(connector)).Inc()
}

// AddRecordsUpserted adds to the upserted record counter for the named connector.
func (s *SyncMetrics) AddRecordsUpserted(connector string, n int) {
	if s == nil || s.recordsUpserted == nil || n <= 0 {
		return
	}
	s.recordsUpserted.WithLabelValues(normalizeLabel(connector)).Add(float64(n))
}

// AddRecordErrors adds to the failed record counter for the named connector.
func (s *SyncMetrics) AddRecordErrors(connector string, n int) {
	if s == nil || s.recordErrors == nil || n <= 0 {
		return
	}
	s.recordErrors.WithLabelValues(normalizeLabel(connector)).Add(float64(n))
}

func normalizeLabel(connector string) string {
	if connector == "" {
		return "unknown"
	}
	return connector
}
