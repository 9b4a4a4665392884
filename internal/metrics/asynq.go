package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes. A dropped task returned asynq.SkipRetry and will not run again.
const (
	taskOK      = "ok"
	taskRetry   = "retry"
	taskDropped = "dropped"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrintake",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Background tasks handled, by type and outcome.",
		},
		[]string{"task_type", "outcome"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qrintake",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Time spent in a task handler.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "qrintake",
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "Task handlers currently executing.",
		},
		[]string{"task_type"},
	)
)

func taskOutcome(err error) string {
	switch {
	case err == nil:
		return taskOK
	case errors.Is(err, asynq.SkipRetry):
		return taskDropped
	default:
		return taskRetry
	}
}

// AsynqMetricsMiddleware records each task's outcome and duration.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			running := tasksRunning.WithLabelValues(taskType)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			tasksTotal.WithLabelValues(taskType, taskOutcome(err)).Inc()
			return err
		})
	}
}
