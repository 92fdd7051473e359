package worker

import (
	"context"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/socialchef/chefai/internal/errors"
)

// SentryMiddleware reports task failures that point at a bug or an outage. Refused prompts,
// empty image responses and the like are expected outcomes and stay out of Sentry, as do
// failures asynq is about to retry.
func SentryMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, _ := asynq.GetTaskID(ctx)
		retryCount, _ := asynq.GetRetryCount(ctx)

		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetTag("task_type", t.Type())
		hub.Scope().SetTag("task_id", taskID)
		hub.Scope().SetTag("retry_count", strconv.Itoa(retryCount))
		if id := imageJobID(t); id != "" {
			hub.Scope().SetTag("image_job_id", id)
		}
		ctx = sentry.SetHubOnContext(ctx, hub)

		err := h.ProcessTask(ctx, t)
		if err != nil && reportable(err) && outcome(ctx, err) == outcomeFailed {
			if code := errors.KindOf(err); code != "" {
				hub.Scope().SetTag("error_code", string(code))
			}
			hub.CaptureException(err)
		}
		return err
	})
}

func reportable(err error) bool {
	appErr, ok := errors.As(err)
	return !ok || !appErr.IsOperational
}
