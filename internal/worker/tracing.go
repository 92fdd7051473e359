package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/hibiken/asynq"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Task outcomes as reported to spans and metrics.
const (
	outcomeCompleted = "completed"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
)

// outcome reports whether asynq will run the task again after err.
func outcome(ctx context.Context, err error) string {
	if err == nil {
		return outcomeCompleted
	}
	if stderrors.Is(err, asynq.SkipRetry) || !retriesLeft(ctx) {
		return outcomeFailed
	}
	return outcomeRetry
}

// imageJobID pulls the job id out of a synthesize:image payload without failing.
func imageJobID(t *asynq.Task) string {
	if t.Type() != TypeSynthesizeImage {
		return ""
	}
	var p SynthesizeImagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ""
	}
	return p.JobID
}

// OTelMiddleware starts a consumer span per task, tagged with the image job it serves.
func OTelMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, _ := asynq.GetTaskID(ctx)
		queueName, _ := asynq.GetQueueName(ctx)
		retryCount, _ := asynq.GetRetryCount(ctx)

		ctx, span := telemetry.Tracer("worker").Start(ctx, "task "+t.Type(), trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		span.SetAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.type", t.Type()),
			attribute.String("task.queue", queueName),
			attribute.Int("task.retry_count", retryCount),
		)
		if id := imageJobID(t); id != "" {
			span.SetAttributes(attribute.String("image_job.id", id))
		}

		err := h.ProcessTask(ctx, t)
		span.SetAttributes(attribute.String("task.outcome", outcome(ctx, err)))
		if err != nil {
			if code := errors.KindOf(err); code != "" {
				span.SetAttributes(attribute.String("error.code", string(code)))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}
