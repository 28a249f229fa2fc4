package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
)

// Job list limits.
const (
	defaultJobListLimit = 50
	maxJobListLimit     = 200
)

// JobHandler handles job queue endpoints.
type JobHandler struct {
	scope  *Scope
	jobs   *repository.JobRepository
	logger *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(scope *Scope, jobs *repository.JobRepository, log *slog.Logger) *JobHandler {
	if log == nil {
		log = slog.Default()
	}
	return &JobHandler{scope: scope, jobs: jobs, logger: log}
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createJob",
		Method:      "POST",
		Path:        "/api/projects/{id}/jobs",
		Summary:     "Queue job",
		Description: "Queues a background job for the project",
		Tags:        []string{"Jobs"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/projects/{id}/jobs",
		Summary:     "List jobs",
		Description: "Returns the project's jobs, newest first",
		Tags:        []string{"Jobs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/projects/{id}/jobs/{job_id}",
		Summary:     "Get job",
		Description: "Returns one job of the project",
		Tags:        []string{"Jobs"},
	}, h.Get)
}

// CreateJobInput is the input for queueing a job.
type CreateJobInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body struct {
		Type     string `json:"type" doc:"Job type: full_script, segment_generate, extract_frame, analyze, assemble"`
		Index    *int   `json:"index,omitempty" minimum:"0" doc:"Segment index for per-segment jobs"`
		Feedback string `json:"feedback,omitempty" maxLength:"2000" doc:"Revision notes for the model"`
		Locale   string `json:"locale,omitempty" maxLength:"16" doc:"Prompt locale, e.g. zh-CN"`
	}
}

// JobOutput wraps a JobResponse.
type JobOutput struct {
	Body JobResponse
}

// JobListOutput wraps a job list.
type JobListOutput struct {
	Body []JobResponse
}

// Create queues a job for the background worker.
func (h *JobHandler) Create(ctx context.Context, input *CreateJobInput) (*JobOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	jobType := models.JobType(input.Body.Type)
	if !jobType.Valid() {
		return nil, huma.Error400BadRequest("JOB_TYPE_INVALID")
	}

	payload := models.JobPayload{
		Index:    input.Body.Index,
		Feedback: input.Body.Feedback,
		Locale:   input.Body.Locale,
	}
	job, err := queueJob(ctx, h.jobs, project.ID, jobType, payload)
	if err != nil {
		h.logger.Error("failed to queue job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	return &JobOutput{Body: JobFromModel(job)}, nil
}

// ListJobsInput is the input for listing a project's jobs.
type ListJobsInput struct {
	ID    string `path:"id" doc:"Project ID"`
	Limit int    `query:"limit" doc:"Maximum rows to return (1-200, default 50)"`
}

// List returns the project's jobs, newest first.
func (h *JobHandler) List(ctx context.Context, input *ListJobsInput) (*JobListOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	jobs, err := h.jobs.ListByProject(ctx, project.ID, limit)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobFromModel(j))
	}
	return &JobListOutput{Body: out}, nil
}

// GetJobInput is the input for fetching one job.
type GetJobInput struct {
	ID    string `path:"id" doc:"Project ID"`
	JobID string `path:"job_id" doc:"Job ID"`
}

// Get returns one job of the project.
func (h *JobHandler) Get(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	jobID, err := models.ParseULID(input.JobID)
	if err != nil {
		return nil, huma.Error404NotFound("job not found")
	}
	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.logger.Error("failed to load job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job == nil || job.ProjectID != project.ID {
		return nil, huma.Error404NotFound("job not found")
	}

	return &JobOutput{Body: JobFromModel(job)}, nil
}
