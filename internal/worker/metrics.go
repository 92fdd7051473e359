package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/socialchef/chefai/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("chefai/worker")

// WorkerMetrics counts task runs by outcome and times them. Per-job terminal states are
// recorded separately by the image processor.
type WorkerMetrics struct {
	taskRuns     metric.Int64Counter
	taskDuration metric.Float64Histogram
}

func NewWorkerMetrics() (*WorkerMetrics, error) {
	taskRuns, err := meter.Int64Counter(
		"chefai.worker.task_runs",
		metric.WithDescription("Task executions by type, outcome and error code"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	// Image synthesis routinely takes tens of seconds.
	taskDuration, err := meter.Float64Histogram(
		"chefai.worker.task_duration",
		metric.WithDescription("Wall time of one task execution"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 20, 40, 60, 120, 180),
	)
	if err != nil {
		return nil, err
	}

	return &WorkerMetrics{taskRuns: taskRuns, taskDuration: taskDuration}, nil
}

// RecordRun adds one execution. code is the error kind, empty on success.
func (m *WorkerMetrics) RecordRun(ctx context.Context, taskType, result, code string, elapsed time.Duration) {
	if m == nil {
		return
	}

	typeAttr := attribute.String("task.type", taskType)
	m.taskRuns.Add(ctx, 1, metric.WithAttributes(
		typeAttr,
		attribute.String("outcome", result),
		attribute.String("error.code", code),
	))
	m.taskDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(typeAttr, attribute.String("outcome", result)))
}

// Middleware records every task execution. A nil receiver passes tasks through untouched.
func (m *WorkerMetrics) Middleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := h.ProcessTask(ctx, t)
		m.RecordRun(ctx, t.Type(), outcome(ctx, err), string(errors.KindOf(err)), time.Since(start))
		return err
	})
}
