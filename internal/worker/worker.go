// Package worker runs the persisted job queue: one in-process loop that picks
// the oldest queued job whose project is idle, enforces one running job per
// project, and executes the pipeline handlers.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/llm"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/storage"
)

// minBackoff is the floor between loop iterations so a wedged queue cannot
// spin the database.
const minBackoff = 500 * time.Millisecond

// Worker drains the job queue. A single instance per process is expected;
// per-project exclusivity is enforced through job rows, so extra instances
// are safe but pointless.
type Worker struct {
	projects *repository.ProjectRepository
	segments *repository.SegmentRepository
	jobs     *repository.JobRepository
	layout   *storage.Layout
	media    *ffmpeg.Toolkit
	model    llm.Client
	logger   *slog.Logger

	pollInterval time.Duration
}

// New creates a Worker.
func New(
	cfg config.WorkerConfig,
	projects *repository.ProjectRepository,
	segments *repository.SegmentRepository,
	jobs *repository.JobRepository,
	layout *storage.Layout,
	media *ffmpeg.Toolkit,
	model llm.Client,
	log *slog.Logger,
) *Worker {
	if log == nil {
		log = slog.Default()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		projects:     projects,
		segments:     segments,
		jobs:         jobs,
		layout:       layout,
		media:        media,
		model:        model,
		logger:       log,
		pollInterval: poll,
	}
}

// Run executes jobs until ctx is canceled. The loop never exits on job
// errors; failures are recorded on the job row and the loop continues.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", slog.Duration("poll_interval", w.pollInterval))
	for {
		worked := w.runOnce(ctx)

		wait := w.pollInterval
		if worked {
			wait = minBackoff
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// runOnce claims and executes at most one job. It reports whether a job was
// executed so the caller can shorten the next wait.
func (w *Worker) runOnce(ctx context.Context) bool {
	// One running job per project; queued jobs of a busy project are skipped
	// so other projects keep draining. FIFO order still holds per project
	// because a project's jobs only run one at a time, oldest first.
	job, err := w.jobs.OldestRunnable(ctx)
	if err != nil {
		w.logger.Error("failed to poll job queue", slog.String("error", err.Error()))
		return false
	}
	if job == nil {
		return false
	}

	w.Execute(ctx, job)
	return true
}

// Execute runs one job to a terminal state. Also called directly by the
// synchronous API variants, which bypass the queue loop.
func (w *Worker) Execute(ctx context.Context, job *models.Job) {
	log := w.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("project_id", job.ProjectID.String()),
		slog.String("type", string(job.Type)),
	)

	job.Status = models.JobStatusRunning
	job.Progress = 1
	job.Message = "running"
	job.SetUIMessage("jobmsg.running", nil)
	if err := w.jobs.Update(ctx, job); err != nil {
		log.Error("failed to mark job running", slog.String("error", err.Error()))
		return
	}
	log.Info("job started")

	data, err := w.dispatch(ctx, job)
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Message = "failed"
		job.Error = err.Error()
		job.SetUIMessage("jobmsg.failed", nil)
		if uerr := w.jobs.Update(ctx, job); uerr != nil {
			log.Error("failed to persist job failure", slog.String("error", uerr.Error()))
		}
		log.Error("job failed", slog.String("error", err.Error()))
		return
	}

	job.Status = models.JobStatusSucceeded
	job.Progress = 100
	job.Message = "succeeded"
	result := job.DecodeResult()
	result.Data = data
	result.UIMessage = &models.UIMessage{Key: "jobmsg.succeeded"}
	// Marshal of plain maps and strings cannot fail.
	_ = job.SetResult(result)
	if err := w.jobs.Update(ctx, job); err != nil {
		log.Error("failed to persist job success", slog.String("error", err.Error()))
		return
	}
	log.Info("job succeeded")
}

func (w *Worker) dispatch(ctx context.Context, job *models.Job) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	project, err := w.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s not found", job.ProjectID)
	}
	payload, err := job.DecodePayload()
	if err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}

	switch job.Type {
	case models.JobTypeFullScript:
		return w.handleFullScript(ctx, job, project, payload)
	case models.JobTypeSegmentGenerate:
		return w.handleSegmentGenerate(ctx, job, project, payload)
	case models.JobTypeExtractFrame:
		return w.handleExtractFrame(ctx, job, project, payload)
	case models.JobTypeAnalyze:
		return w.handleAnalyze(ctx, job, project, payload)
	case models.JobTypeAssemble:
		return w.handleAssemble(ctx, job, project)
	}
	return nil, fmt.Errorf("unknown job type %q", job.Type)
}

// checkpoint persists a progress step with its UI message.
func (w *Worker) checkpoint(ctx context.Context, job *models.Job, progress int, uiKey string, params map[string]string) error {
	job.Progress = progress
	job.SetUIMessage(uiKey, params)
	return w.jobs.Update(ctx, job)
}
