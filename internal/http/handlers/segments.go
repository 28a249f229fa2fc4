package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/canon"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/workflow"
)

// SegmentHandler handles segment endpoints.
type SegmentHandler struct {
	scope    *Scope
	projects *repository.ProjectRepository
	segments *repository.SegmentRepository
	jobs     *repository.JobRepository
	exec     Executor
	logger   *slog.Logger
}

// NewSegmentHandler creates a new segment handler.
func NewSegmentHandler(
	scope *Scope,
	projects *repository.ProjectRepository,
	segments *repository.SegmentRepository,
	jobs *repository.JobRepository,
	exec Executor,
	log *slog.Logger,
) *SegmentHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SegmentHandler{
		scope:    scope,
		projects: projects,
		segments: segments,
		jobs:     jobs,
		exec:     exec,
		logger:   log,
	}
}

// Register registers the segment routes with the API.
func (h *SegmentHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSegment",
		Method:      "GET",
		Path:        "/api/projects/{id}/segments/{index}",
		Summary:     "Get segment",
		Description: "Returns one segment; indices without a row report pending defaults",
		Tags:        []string{"Segments"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "generateSegment",
		Method:      "POST",
		Path:        "/api/projects/{id}/segments/{index}/generate",
		Summary:     "Generate segment script",
		Description: "Generates the segment's script and video prompt, invalidating downstream segments",
		Tags:        []string{"Segments"},
	}, h.Generate)

	huma.Register(api, huma.Operation{
		OperationID: "updateSegment",
		Method:      "PUT",
		Path:        "/api/projects/{id}/segments/{index}",
		Summary:     "Update segment",
		Description: "Edits the segment's script or prompt, optionally invalidating downstream segments",
		Tags:        []string{"Segments"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "extractSegmentFrame",
		Method:      "POST",
		Path:        "/api/projects/{id}/segments/{index}/extract_frame",
		Summary:     "Extract last frame",
		Description: "Extracts the final frame of the segment's uploaded video",
		Tags:        []string{"Segments"},
	}, h.ExtractFrame)

	huma.Register(api, huma.Operation{
		OperationID: "analyzeSegment",
		Method:      "POST",
		Path:        "/api/projects/{id}/segments/{index}/analyze",
		Summary:     "Analyze segment video",
		Description: "Runs multimodal analysis and extends the canon context",
		Tags:        []string{"Segments"},
	}, h.Analyze)
}

// SegmentPathInput carries the project and segment path parameters.
type SegmentPathInput struct {
	ID    string `path:"id" doc:"Project ID"`
	Index int    `path:"index" minimum:"0" doc:"0-based segment index"`
}

// SegmentOutput wraps a SegmentDetail response.
type SegmentOutput struct {
	Body SegmentDetail
}

// resolve loads the project and validates the index bound.
func (h *SegmentHandler) resolve(ctx context.Context, id string, index int) (*models.Project, error) {
	project, err := h.scope.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= project.TotalSegments() {
		return nil, huma.Error400BadRequest("INDEX_OUT_OF_RANGE")
	}
	return project, nil
}

// Get returns one segment.
func (h *SegmentHandler) Get(ctx context.Context, input *SegmentPathInput) (*SegmentOutput, error) {
	project, err := h.resolve(ctx, input.ID, input.Index)
	if err != nil {
		return nil, err
	}
	segment, err := h.loadOrSynthetic(ctx, project, input.Index)
	if err != nil {
		return nil, err
	}
	return &SegmentOutput{Body: SegmentFromModel(segment)}, nil
}

// GenerateSegmentInput is the input for synchronous segment generation.
type GenerateSegmentInput struct {
	ID    string `path:"id" doc:"Project ID"`
	Index int    `path:"index" minimum:"0" doc:"0-based segment index"`
	Body  struct {
		Feedback string `json:"feedback,omitempty" maxLength:"2000" doc:"Revision notes for the model"`
		Locale   string `json:"locale,omitempty" maxLength:"16" doc:"Prompt locale, e.g. zh-CN"`
	}
}

// Generate runs the segment-generation job synchronously.
func (h *SegmentHandler) Generate(ctx context.Context, input *GenerateSegmentInput) (*ProjectOutput, error) {
	project, err := h.resolve(ctx, input.ID, input.Index)
	if err != nil {
		return nil, err
	}

	index := input.Index
	payload := models.JobPayload{Index: &index, Feedback: input.Body.Feedback, Locale: input.Body.Locale}
	job, err := runJobSync(ctx, h.jobs, h.exec, project.ID, models.JobTypeSegmentGenerate, payload)
	if err != nil {
		if err == errProjectBusy {
			return nil, err
		}
		h.logger.Error("failed to run segment job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job.Status == models.JobStatusFailed {
		return nil, jobFailure(job, h.logger)
	}

	return h.projectDetail(ctx, project.ID)
}

// UpdateSegmentInput is the input for editing a segment.
type UpdateSegmentInput struct {
	ID    string `path:"id" doc:"Project ID"`
	Index int    `path:"index" minimum:"0" doc:"0-based segment index"`
	Body  struct {
		SegmentScript        *string `json:"segment_script,omitempty" doc:"Replacement narration text"`
		VideoPrompt          *string `json:"video_prompt,omitempty" doc:"Replacement generation prompt"`
		InvalidateDownstream bool    `json:"invalidate_downstream" doc:"Reset later segments and rewind the cursor"`
	}
}

// Update edits a segment's script or prompt. Any edit clears the segment's
// media fields; invalidate_downstream additionally resets everything after
// it and rewinds the workflow cursor.
func (h *SegmentHandler) Update(ctx context.Context, input *UpdateSegmentInput) (*ProjectOutput, error) {
	project, err := h.resolve(ctx, input.ID, input.Index)
	if err != nil {
		return nil, err
	}

	segment, err := h.loadOrSynthetic(ctx, project, input.Index)
	if err != nil {
		return nil, err
	}

	changed := false
	if input.Body.SegmentScript != nil {
		segment.SegmentScript = strings.TrimSpace(*input.Body.SegmentScript)
		changed = true
	}
	if input.Body.VideoPrompt != nil {
		segment.VideoPrompt = strings.TrimSpace(*input.Body.VideoPrompt)
		changed = true
	}
	if changed {
		segment.ClearMedia()
		segment.Status = models.SegmentStatusScriptReady
	}
	if err := h.segments.Upsert(ctx, segment); err != nil {
		h.logger.Error("failed to upsert segment", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	if input.Body.InvalidateDownstream {
		if err := h.segments.InvalidateAfter(ctx, project.ID, input.Index); err != nil {
			h.logger.Error("failed to invalidate segments", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		remaining, err := h.segments.ListByProject(ctx, project.ID)
		if err != nil {
			h.logger.Error("failed to list segments", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		project.CanonSummaries = canon.BeforeIndex(project.CanonSummaries, input.Index)
		project.LastFramePath = workflow.LatestFrameBefore(remaining, input.Index)
		project.CurrentSegmentIndex = input.Index
		discardFinalVideo(project)
		if err := h.projects.Update(ctx, project); err != nil {
			h.logger.Error("failed to update project", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
	}

	return h.projectDetail(ctx, project.ID)
}

// ExtractFrame runs the frame-extraction job synchronously.
func (h *SegmentHandler) ExtractFrame(ctx context.Context, input *SegmentPathInput) (*SegmentOutput, error) {
	project, err := h.resolve(ctx, input.ID, input.Index)
	if err != nil {
		return nil, err
	}

	index := input.Index
	job, err := runJobSync(ctx, h.jobs, h.exec, project.ID, models.JobTypeExtractFrame, models.JobPayload{Index: &index})
	if err != nil {
		if err == errProjectBusy {
			return nil, err
		}
		h.logger.Error("failed to run extract frame job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job.Status == models.JobStatusFailed {
		return nil, jobFailure(job, h.logger)
	}

	segment, err := h.loadOrSynthetic(ctx, project, input.Index)
	if err != nil {
		return nil, err
	}
	return &SegmentOutput{Body: SegmentFromModel(segment)}, nil
}

// Analyze runs the analysis job synchronously.
func (h *SegmentHandler) Analyze(ctx context.Context, input *GenerateSegmentInput) (*ProjectOutput, error) {
	project, err := h.resolve(ctx, input.ID, input.Index)
	if err != nil {
		return nil, err
	}

	index := input.Index
	payload := models.JobPayload{Index: &index, Feedback: input.Body.Feedback, Locale: input.Body.Locale}
	job, err := runJobSync(ctx, h.jobs, h.exec, project.ID, models.JobTypeAnalyze, payload)
	if err != nil {
		if err == errProjectBusy {
			return nil, err
		}
		h.logger.Error("failed to run analyze job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job.Status == models.JobStatusFailed {
		return nil, jobFailure(job, h.logger)
	}

	return h.projectDetail(ctx, project.ID)
}

func (h *SegmentHandler) loadOrSynthetic(ctx context.Context, project *models.Project, index int) (*models.Segment, error) {
	segment, err := h.segments.Get(ctx, project.ID, index)
	if err != nil {
		h.logger.Error("failed to load segment", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if segment == nil {
		segment = workflow.SyntheticSegment(project.ID, index)
	}
	return segment, nil
}

func (h *SegmentHandler) projectDetail(ctx context.Context, id models.ULID) (*ProjectOutput, error) {
	project, err := h.projects.GetByID(ctx, id)
	if err != nil || project == nil {
		if err != nil {
			h.logger.Error("failed to reload project", slog.String("error", err.Error()))
		}
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	segments, err := h.segments.ListByProject(ctx, project.ID)
	if err != nil {
		h.logger.Error("failed to list segments", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	return &ProjectOutput{Body: ProjectDetailFromModel(project, segments, fullDetail)}, nil
}
