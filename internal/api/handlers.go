package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/socialchef/chefai/internal/cache"
	"github.com/socialchef/chefai/internal/config"
	"github.com/socialchef/chefai/internal/errors"
	"github.com/socialchef/chefai/internal/pipeline"
	"github.com/socialchef/chefai/internal/services/gemini"
	"github.com/socialchef/chefai/internal/worker"
)

// TaskEnqueuer is the part of asynq.Client the API needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	queue    TaskEnqueuer
	jobs     worker.JobStore
}

type Option func(*Server)

// WithImageJobs enables the background image endpoints.
func WithImageJobs(queue TaskEnqueuer, jobs worker.JobStore) Option {
	return func(s *Server) {
		s.queue = queue
		s.jobs = jobs
	}
}

func NewServer(cfg *config.Config, p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/recipes", s.HandleGenerateRecipe)
		r.Post("/ingredients/recognize", s.HandleRecognizeIngredients)
		r.Post("/images", s.HandleSynthesizeImage)
		r.Post("/images/jobs", s.HandleCreateImageJob)
		r.Get("/images/jobs/{jobID}", s.HandleGetImageJob)
		r.Post("/chef", s.HandleChef)
	})
}

type HealthResponse struct {
	Status string `json:"status"`
}

// SuccessResponse carries the result field matching the request.
type SuccessResponse struct {
	Status string `json:"status"`
	*pipeline.ActionResult
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: string(s.pipeline.Health())})
}

// dispatch runs a and writes the result or the error.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a pipeline.Action) {
	res, err := s.pipeline.Dispatch(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Status: "success", ActionResult: res})
}

func (s *Server) HandleGenerateRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.CheckConfigured(); err != nil {
		writeError(w, r, err)
		return
	}

	var req pipeline.GenerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	withImage, _ := strconv.ParseBool(r.URL.Query().Get("image"))

	s.dispatch(w, r, pipeline.GenerateText{Request: req, WithImage: withImage})
}

type RecognizeRequest struct {
	Image  string   `json:"image"`
	Images []string `json:"images"`
}

func (s *Server) HandleRecognizeIngredients(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.CheckConfigured(); err != nil {
		writeError(w, r, err)
		return
	}

	var req RecognizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s.dispatch(w, r, pipeline.RecognizeImage{Images: collectImages(req.Image, req.Images)})
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) HandleSynthesizeImage(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.CheckConfigured(); err != nil {
		writeError(w, r, err)
		return
	}

	var req ImageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s.dispatch(w, r, pipeline.SynthesizeImage{Prompt: req.Prompt})
}

func (s *Server) HandleChef(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	action, isHealth, err := decodeAction(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if isHealth {
		s.HandleHealth(w, r)
		return
	}

	s.dispatch(w, r, action)
}

type ImageJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) HandleCreateImageJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil || s.jobs == nil {
		writeError(w, r, errors.NewJobsUnconfiguredError())
		return
	}
	if err := s.pipeline.CheckConfigured(); err != nil {
		writeError(w, r, err)
		return
	}

	var req ImageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, r, errors.NewEmptyInputError("Image prompt is empty."))
		return
	}

	job := &cache.ImageJob{
		ID:     uuid.New().String(),
		Status: cache.JobPending,
		Prompt: req.Prompt,
	}
	if err := s.jobs.Save(r.Context(), job); err != nil {
		writeError(w, r, errors.NewInternalError("Failed to create image job", err))
		return
	}

	task, err := worker.NewSynthesizeImageTask(worker.SynthesizeImagePayload{
		JobID:  job.ID,
		Prompt: req.Prompt,
	})
	if err != nil {
		writeError(w, r, errors.NewInternalError("Failed to create task", err))
		return
	}

	if _, err := s.queue.EnqueueContext(r.Context(), task); err != nil {
		job.Status = cache.JobFailed
		job.ErrorCode = "ENQUEUE_FAILED"
		job.ErrorMessage = err.Error()
		if saveErr := s.jobs.Save(r.Context(), job); saveErr != nil {
			slog.Error("Failed to mark image job failed", "job_id", job.ID, "error", saveErr)
		}
		writeError(w, r, errors.NewInternalError("Failed to enqueue task", err))
		return
	}

	writeJSON(w, http.StatusAccepted, ImageJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

type JobStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ImageURL  string `json:"image_url,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) HandleGetImageJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, r, errors.NewJobsUnconfiguredError())
		return
	}

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, r, errors.NewValidationError("job id is required", "MISSING_JOB_ID", "Pass the job_id returned when the job was created."))
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := JobStatusResponse{
		ID:        job.ID,
		Status:    string(job.Status),
		ErrorCode: job.ErrorCode,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == cache.JobCompleted && job.ImageData != "" {
		resp.ImageURL = (&gemini.Image{MIMEType: job.MIMEType, Data: job.ImageData}).DataURL()
	}
	writeJSON(w, http.StatusOK, resp)
}
