package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSynced  = "synced"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"

	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusConflict = "conflict"

	TickRan         = "processed"
	TickIdle        = "idle"
	TickSkippedBusy = "skipped_busy"
	TickError       = "error"
)

// SyncMetrics records synchronization engine activity. A nil *SyncMetrics is
// a valid no-op recorder.
type SyncMetrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	records       *prometheus.CounterVec
	pages         *prometheus.CounterVec
	schedulerTick *prometheus.CounterVec
}

func NewSyncMetrics(registerer prometheus.Registerer) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsync_sync_runs_total",
		Help: "Synchronization runs by type and status.",
	}, []string{"type", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billsync_sync_duration_seconds",
		Help:    "Wall time of completed synchronization runs.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"type"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsync_sync_records_total",
		Help: "Billing records processed by outcome.",
	}, []string{"type", "outcome"})
	pages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsync_sync_pages_total",
		Help: "Remote pages walked by synchronization type.",
	}, []string{"type"})
	schedulerTick := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsync_autosync_ticks_total",
		Help: "Scheduler ticks by result.",
	}, []string{"result"})

	registerer.MustRegister(runs, duration, records, pages, schedulerTick)

	return &SyncMetrics{
		runs:          runs,
		duration:      duration,
		records:       records,
		pages:         pages,
		schedulerTick: schedulerTick,
	}
}

func (m *SyncMetrics) ObserveRun(syncType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(syncType, status).Inc()
	if status != StatusConflict {
		m.duration.WithLabelValues(syncType).Observe(elapsed.Seconds())
	}
}

func (m *SyncMetrics) AddRecords(syncType string, synced, failed, skipped, pages int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(syncType, OutcomeSynced).Add(float64(synced))
	m.records.WithLabelValues(syncType, OutcomeFailed).Add(float64(failed))
	m.records.WithLabelValues(syncType, OutcomeSkipped).Add(float64(skipped))
	m.pages.WithLabelValues(syncType).Add(float64(pages))
}

func (m *SyncMetrics) IncSchedulerTick(result string) {
	if m == nil {
		return
	}
	m.schedulerTick.WithLabelValues(result).Inc()
}

// SchedulerTicks exposes the tick counter for result.
func (m *SyncMetrics) SchedulerTicks(result string) prometheus.Counter {
	return m.schedulerTick.WithLabelValues(result)
}
