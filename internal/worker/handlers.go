package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/socialchef/chefai/internal/cache"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/logger"
	"github.com/socialchef/chefai/internal/metrics"
	"github.com/socialchef/chefai/internal/pipeline"
	"github.com/socialchef/chefai/internal/services/gemini"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ImageSynthesizer produces one food photograph for a prompt.
type ImageSynthesizer interface {
	SynthesizeImage(ctx context.Context, prompt string) (*gemini.Image, error)
}

// JobStore reads and writes image job records.
type JobStore interface {
	Save(ctx context.Context, job *cache.ImageJob) error
	Get(ctx context.Context, id string) (*cache.ImageJob, error)
}

// Dispatcher runs pipeline actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, a pipeline.Action) (*pipeline.ActionResult, error)
}

type dispatchImages struct {
	d Dispatcher
}

// DispatchImages synthesizes through d, so an empty credential pool fails as UNCONFIGURED
// before any model call.
func DispatchImages(d Dispatcher) ImageSynthesizer {
	return dispatchImages{d: d}
}

func (di dispatchImages) SynthesizeImage(ctx context.Context, prompt string) (*gemini.Image, error) {
	res, err := di.d.Dispatch(ctx, pipeline.SynthesizeImage{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

type ImageProcessor struct {
	images ImageSynthesizer
	jobs   JobStore
}

func NewImageProcessor(images ImageSynthesizer, jobs JobStore) *ImageProcessor {
	return &ImageProcessor{
		images: images,
		jobs:   jobs,
	}
}

func (p *ImageProcessor) HandleSynthesizeImage(ctx context.Context, t *asynq.Task) error {
	var payload SynthesizeImagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("image task without job id: %w", asynq.SkipRetry)
	}

	job, err := p.jobs.Get(ctx, payload.JobID)
	switch {
	case errors.KindOf(err) == errors.ErrorTypeNotFound:
		// The record expired or was never written; start a fresh one.
		job = &cache.ImageJob{ID: payload.JobID, Prompt: payload.Prompt}
	case err != nil:
		return fmt.Errorf("failed to load image job: %w", err)
	case job.Terminal():
		slog.Info("Image job already finished, skipping", "job_id", job.ID, "status", job.Status)
		return nil
	}

	slog.Info("Synthesizing image", "job_id", job.ID, logger.WithTraceContext(ctx))
	p.updateStatus(ctx, job, cache.JobRunning)

	img, err := p.images.SynthesizeImage(ctx, payload.Prompt)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	job.MIMEType = img.MIMEType
	job.ImageData = img.Data
	job.ErrorCode = ""
	job.ErrorMessage = ""
	p.updateStatus(ctx, job, cache.JobCompleted)
	recordJob(ctx, cache.JobCompleted)

	slog.Info("Image job completed", "job_id", job.ID, "mime_type", img.MIMEType, logger.WithTraceContext(ctx))
	return nil
}

// fail records err on job. Transient errors leave the job pending while asynq still has
// retries left; everything else is final and skips the retry queue.
func (p *ImageProcessor) fail(ctx context.Context, job *cache.ImageJob, err error) error {
	code := string(errors.KindOf(err))
	if code == "" {
		code = string(errors.ErrorTypeInternal)
	}
	job.ErrorCode = code
	job.ErrorMessage = err.Error()

	if retryable(err) && retriesLeft(ctx) {
		slog.Warn("Image job failed, will retry", "job_id", job.ID, "error_code", code, "error", err.Error())
		p.updateStatus(ctx, job, cache.JobPending)
		return err
	}

	slog.Error("Image job failed", "job_id", job.ID, "error_code", code, "error", err.Error())
	p.updateStatus(ctx, job, cache.JobFailed)
	recordJob(ctx, cache.JobFailed)
	if retryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

func (p *ImageProcessor) updateStatus(ctx context.Context, job *cache.ImageJob, status cache.JobStatus) {
	job.Status = status
	if err := p.jobs.Save(ctx, job); err != nil {
		slog.Error("Failed to save image job", "job_id", job.ID, "status", status, "error", err)
	}
}

// retryable reports whether another attempt could succeed. Errors outside the taxonomy,
// such as a dropped Redis connection, are retried.
func retryable(err error) bool {
	appErr, ok := errors.As(err)
	if !ok {
		return true
	}
	return appErr.IsRetryable()
}

func retriesLeft(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried < limit
}

func recordJob(ctx context.Context, status cache.JobStatus) {
	metrics.ImageJobsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
