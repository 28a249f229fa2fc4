package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
)

// Executor runs a job to a terminal state in the calling goroutine. The
// synchronous API variants use it to reuse the queue handlers without the
// queue latency.
type Executor interface {
	Execute(ctx context.Context, job *models.Job)
}

// queueJob inserts a queued job row with its initial UI message.
func queueJob(ctx context.Context, jobs *repository.JobRepository, projectID models.ULID, jobType models.JobType, payload models.JobPayload) (*models.Job, error) {
	job := &models.Job{
		ProjectID: projectID,
		Type:      jobType,
		Status:    models.JobStatusQueued,
	}
	if err := job.SetPayload(payload); err != nil {
		return nil, err
	}
	job.SetUIMessage("jobmsg.queued", nil)
	if err := jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// errProjectBusy rejects a synchronous run that would overlap a running job
// of the same project.
var errProjectBusy = huma.Error409Conflict("PROJECT_BUSY")

// runJobSync queues a job and executes it immediately. A project with a
// running job is rejected so the one-running-job-per-project rule also holds
// against the background worker.
func runJobSync(ctx context.Context, jobs *repository.JobRepository, exec Executor, projectID models.ULID, jobType models.JobType, payload models.JobPayload) (*models.Job, error) {
	busy, err := jobs.HasRunning(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, errProjectBusy
	}
	job, err := queueJob(ctx, jobs, projectID, jobType, payload)
	if err != nil {
		return nil, err
	}
	exec.Execute(ctx, job)
	return job, nil
}

// jobFailure maps a failed synchronous job onto the API error surface.
// Domain errors become 400s; anything else is logged and returned as a
// generic 500.
func jobFailure(job *models.Job, log *slog.Logger) error {
	switch job.Error {
	case models.ErrFullScriptMissing.Error():
		return huma.Error400BadRequest("FULL_SCRIPT_MISSING")
	case models.ErrIndexOutOfRange.Error():
		return huma.Error400BadRequest("INDEX_OUT_OF_RANGE")
	case models.ErrLLMEmptyResponse.Error():
		return huma.Error502BadGateway("LLM_EMPTY_RESPONSE")
	}
	if strings.Contains(job.Error, models.ErrSegmentVideoMissing.Error()) {
		return huma.Error400BadRequest("SEGMENT_VIDEO_MISSING")
	}
	log.Error("synchronous job failed",
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(job.Type)),
		slog.String("error", job.Error),
	)
	return huma.Error500InternalServerError("INTERNAL_ERROR")
}
