package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeSynthesizeImage = "synthesize:image"
)

// SynthesizeImagePayload is the payload for background image synthesis tasks
type SynthesizeImagePayload struct {
	JobID  string `json:"job_id"`
	Prompt string `json:"prompt"`
}

// NewSynthesizeImageTask creates a new image synthesis task. The job id doubles as the task
// id so a job cannot be enqueued twice.
func NewSynthesizeImageTask(payload SynthesizeImagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSynthesizeImage, data,
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(3),
		asynq.Timeout(3*time.Minute),
		asynq.Retention(time.Hour),
	), nil
}
