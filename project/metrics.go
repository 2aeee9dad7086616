package project

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects build and task counters. A nil *Metrics records nothing.
type Metrics struct {
	tasks          *prometheus.CounterVec
	taskDuration   prometheus.Histogram
	builds         *prometheus.CounterVec
	failureActions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task nodes visited, by the state they ended in.",
		}, []string{"state"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time from a task's initialisation to its cleanup.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Finished builds, by status.",
		}, []string{"status"}),
		failureActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failure_actions_total",
			Help:      "Failure actions invoked, by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.tasks, m.taskDuration, m.builds, m.failureActions} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register build metrics")
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeTask(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(state).Inc()
	m.taskDuration.Observe(d.Seconds())
}

func (m *Metrics) observeBuild(status string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(status).Inc()
}

func (m *Metrics) observeFailureAction(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.failureActions.WithLabelValues(result).Inc()
}
