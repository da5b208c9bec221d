package task

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts task lifecycle transitions. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_tasks_started_total",
			Help: "Tasks that entered the running state.",
		}, []string{"type"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_tasks_completed_total",
			Help: "Tasks that finished successfully.",
		}, []string{"type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_tasks_failed_total",
			Help: "Tasks that finished with an error.",
		}, []string{"type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyreel_task_duration_seconds",
			Help:    "Wall-clock task execution time.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"type", "status"}),
	}
	reg.MustRegister(m.started, m.completed, m.failed, m.duration)
	return m
}

func (m *Metrics) taskStarted(taskType string) {
	if m == nil {
		return
	}
	m.started.WithLabelValues(taskType).Inc()
}

func (m *Metrics) taskFinished(taskType string, status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	switch status {
	case StatusCompleted:
		m.completed.WithLabelValues(taskType).Inc()
	case StatusFailed:
		m.failed.WithLabelValues(taskType).Inc()
	}
	m.duration.WithLabelValues(taskType, string(status)).Observe(elapsed.Seconds())
}
