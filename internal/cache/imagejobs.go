package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/socialchef/chefai/internal/errors"
)

// JobStatus is the lifecycle state of a background image job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// DefaultJobTTL is how long job records are kept.
const DefaultJobTTL = time.Hour

// ErrStoreUnavailable is returned when no Redis client is configured.
var ErrStoreUnavailable = errors.New("image job store is not configured")

// ImageJob is the stored record of one background image synthesis.
type ImageJob struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Prompt       string    `json:"prompt"`
	MIMEType     string    `json:"mimeType,omitempty"`
	ImageData    string    `json:"imageData,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job will not change again.
func (j *ImageJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// ImageJobStore persists image job records in Redis.
type ImageJobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewImageJobStore creates a job store. A nil client yields a store whose calls return
// ErrStoreUnavailable.
func NewImageJobStore(client *redis.Client, ttl time.Duration) *ImageJobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &ImageJobStore{
		client: client,
		prefix: "imagejob:",
		ttl:    ttl,
	}
}

// Available reports whether the store has a backing client.
func (s *ImageJobStore) Available() bool {
	return s != nil && s.client != nil
}

func (s *ImageJobStore) key(id string) string {
	return s.prefix + id
}

// Save writes job, stamping UpdatedAt and refreshing the TTL.
func (s *ImageJobStore) Save(ctx context.Context, job *ImageJob) error {
	if !s.Available() {
		return ErrStoreUnavailable
	}

	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode image job: %w", err)
	}
	if err := s.client.Set(ctx, s.key(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save image job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads the job with id. A missing job is a NOT_FOUND AppError.
func (s *ImageJobStore) Get(ctx context.Context, id string) (*ImageJob, error) {
	if !s.Available() {
		return nil, ErrStoreUnavailable
	}

	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("image job %s not found", id),
			"IMAGE_JOB_NOT_FOUND",
			"Jobs expire after an hour; submit the image request again.",
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image job %s: %w", id, err)
	}

	var job ImageJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to decode image job %s: %w", id, err)
	}
	return &job, nil
}
