package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// State server metrics.
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshstate_commits_total",
			Help: "Total number of state commits by namespace and outcome",
		},
		[]string{"namespace", "result"},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshstate_commit_duration_seconds",
			Help:    "Time taken to apply one state commit, including its mutation function",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Watcher metrics.
	WatcherUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshstate_watcher_updates_total",
			Help: "Total number of state updates published to the watcher fanout by namespace",
		},
		[]string{"namespace"},
	)

	WatcherAwaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshstate_watcher_await_duration_seconds",
			Help:    "Time a watcher request spent blocked waiting for a qualifying update",
			Buckets: prometheus.DefBuckets,
		},
	)

	WatcherSubscribersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshstate_watcher_subscribers_active",
			Help: "Number of connections currently blocked in a watcher Await call",
		},
	)

	// Task proxy metrics.
	TaskQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshstate_task_queue_depth",
			Help: "Number of dispatches sitting in the task proxy's work queue",
		},
	)

	TaskWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshstate_task_workers_active",
			Help: "Number of worker goroutines currently running in the swarm",
		},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshstate_tasks_completed_total",
			Help: "Total number of task dispatches completed by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshstate_task_duration_seconds",
			Help:    "Time taken to run one task dispatch, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Process supervisor metrics.
	SupervisorProcessesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshstate_supervisor_processes_active",
			Help: "Number of external processes currently supervised and running",
		},
	)

	SupervisorRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshstate_supervisor_retries_total",
			Help: "Total number of times a supervised process was restarted, by command",
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(WatcherUpdatesTotal)
	prometheus.MustRegister(WatcherAwaitDuration)
	prometheus.MustRegister(WatcherSubscribersActive)
	prometheus.MustRegister(TaskQueueDepth)
	prometheus.MustRegister(TaskWorkersActive)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(SupervisorProcessesActive)
	prometheus.MustRegister(SupervisorRetriesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
