package handlers

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reelsmith/reelsmith/internal/http/middleware"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/storage"
)

// ProjectHandler handles project and full-script endpoints.
type ProjectHandler struct {
	scope    *Scope
	projects *repository.ProjectRepository
	segments *repository.SegmentRepository
	jobs     *repository.JobRepository
	exec     Executor
	layout   *storage.Layout
	logger   *slog.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(
	scope *Scope,
	projects *repository.ProjectRepository,
	segments *repository.SegmentRepository,
	jobs *repository.JobRepository,
	exec Executor,
	layout *storage.Layout,
	log *slog.Logger,
) *ProjectHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectHandler{
		scope:    scope,
		projects: projects,
		segments: segments,
		jobs:     jobs,
		exec:     exec,
		layout:   layout,
		logger:   log,
	}
}

// Register registers the project routes with the API.
func (h *ProjectHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createProject",
		Method:      "POST",
		Path:        "/api/projects",
		Summary:     "Create project",
		Description: "Creates a project and its working directory",
		Tags:        []string{"Projects"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listProjects",
		Method:      "GET",
		Path:        "/api/projects",
		Summary:     "List projects",
		Description: "Returns the caller's projects, newest first",
		Tags:        []string{"Projects"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProject",
		Method:      "GET",
		Path:        "/api/projects/{id}",
		Summary:     "Get project",
		Description: "Returns a project with its segment list",
		Tags:        []string{"Projects"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "assembleProject",
		Method:      "POST",
		Path:        "/api/projects/{id}/assemble",
		Summary:     "Assemble final video",
		Description: "Concatenates all segment videos into the final output",
		Tags:        []string{"Projects"},
	}, h.Assemble)

	huma.Register(api, huma.Operation{
		OperationID: "generateFullScript",
		Method:      "POST",
		Path:        "/api/projects/{id}/full_script/generate",
		Summary:     "Generate full script",
		Description: "Generates the global screenplay, invalidating all segments",
		Tags:        []string{"Full script"},
	}, h.GenerateFullScript)

	huma.Register(api, huma.Operation{
		OperationID: "updateFullScript",
		Method:      "PUT",
		Path:        "/api/projects/{id}/full_script",
		Summary:     "Update full script",
		Description: "Replaces the screenplay text, optionally invalidating all segments",
		Tags:        []string{"Full script"},
	}, h.UpdateFullScript)
}

// CreateProjectInput is the input for project creation.
type CreateProjectInput struct {
	Body struct {
		UserPrompt           string `json:"user_prompt" minLength:"1" maxLength:"4000" doc:"Creative brief for the video"`
		TotalDurationSeconds int    `json:"total_duration_seconds" minimum:"1" maximum:"3600" doc:"Target length of the final video"`
		SegmentDuration      int    `json:"segment_duration" minimum:"1" maximum:"600" doc:"Fixed per-segment length in seconds"`
		Pacing               string `json:"pacing,omitempty" enum:"normal,slow,urgent" doc:"Narrative tempo"`
	}
}

// ProjectOutput wraps a ProjectDetail response.
type ProjectOutput struct {
	Body ProjectDetail
}

// ProjectListOutput wraps a project summary list.
type ProjectListOutput struct {
	Body []ProjectSummary
}

// Create creates a new project.
func (h *ProjectHandler) Create(ctx context.Context, input *CreateProjectInput) (*ProjectOutput, error) {
	pacing := models.Pacing(input.Body.Pacing)
	if !pacing.Valid() {
		pacing = models.PacingNormal
	}

	project := &models.Project{
		UserPrompt:           strings.TrimSpace(input.Body.UserPrompt),
		Pacing:               pacing,
		TotalDurationSeconds: input.Body.TotalDurationSeconds,
		SegmentDuration:      input.Body.SegmentDuration,
	}
	if err := h.projects.Create(ctx, project); err != nil {
		h.logger.Error("failed to create project", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	if principal := middleware.Principal(ctx); principal != "" {
		if err := h.projects.SetOwner(ctx, project.ID, principal); err != nil {
			h.logger.Error("failed to set project owner", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
	}

	if err := h.layout.EnsureProjectDirs(project.ID.String()); err != nil {
		h.logger.Warn("failed to create project dirs", slog.String("error", err.Error()))
	}

	return &ProjectOutput{Body: ProjectDetailFromModel(project, nil, fullDetail)}, nil
}

// List returns the caller's projects.
func (h *ProjectHandler) List(ctx context.Context, _ *struct{}) (*ProjectListOutput, error) {
	var (
		projects []*models.Project
		err      error
	)
	if h.scope.authEnabled {
		principal := middleware.Principal(ctx)
		if principal == "" {
			return &ProjectListOutput{Body: make([]ProjectSummary, 0)}, nil
		}
		projects, err = h.projects.ListByPrincipal(ctx, principal)
	} else {
		projects, err = h.projects.ListAll(ctx)
	}
	if err != nil {
		h.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		segments, err := h.segments.ListByProject(ctx, p.ID)
		if err != nil {
			h.logger.Error("failed to list segments", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		out = append(out, ProjectSummaryFromModel(p, segments))
	}
	return &ProjectListOutput{Body: out}, nil
}

// GetProjectInput is the input for fetching one project.
type GetProjectInput struct {
	ID                string `path:"id" doc:"Project ID"`
	IncludeFullScript bool   `query:"include_full_script" doc:"Include the screenplay text"`
	IncludeCanon      bool   `query:"include_canon" doc:"Include the canon context log"`
}

// Get returns one project.
func (h *ProjectHandler) Get(ctx context.Context, input *GetProjectInput) (*ProjectOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return h.detail(ctx, project, detailOptions{
		IncludeFullScript: input.IncludeFullScript,
		IncludeCanon:      input.IncludeCanon,
	})
}

// ProjectIDInput carries just the project path parameter.
type ProjectIDInput struct {
	ID string `path:"id" doc:"Project ID"`
}

// Assemble concatenates all segment videos into the final output.
func (h *ProjectHandler) Assemble(ctx context.Context, input *ProjectIDInput) (*ProjectOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	segments, err := h.segments.ListByProject(ctx, project.ID)
	if err != nil {
		h.logger.Error("failed to list segments", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if missing := missingVideoIndices(project, segments); len(missing) > 0 {
		errs := make([]error, 0, len(missing))
		for _, i := range missing {
			errs = append(errs, &huma.ErrorDetail{
				Message:  "segment has no uploaded video",
				Location: "segments",
				Value:    i,
			})
		}
		return nil, huma.Error400BadRequest("SEGMENT_VIDEO_MISSING", errs...)
	}

	job, err := runJobSync(ctx, h.jobs, h.exec, project.ID, models.JobTypeAssemble, models.JobPayload{})
	if err != nil {
		if err == errProjectBusy {
			return nil, err
		}
		h.logger.Error("failed to run assemble job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job.Status == models.JobStatusFailed {
		return nil, jobFailure(job, h.logger)
	}

	return h.reload(ctx, project.ID)
}

// missingVideoIndices returns the indices without a playable upload.
func missingVideoIndices(project *models.Project, segments []*models.Segment) []int {
	byIndex := make(map[int]*models.Segment, len(segments))
	for _, s := range segments {
		byIndex[s.Index] = s
	}
	var missing []int
	for i := 0; i < project.TotalSegments(); i++ {
		s := byIndex[i]
		if s == nil || s.VideoPath == "" || !fileExists(s.VideoPath) {
			missing = append(missing, i)
		}
	}
	return missing
}

// GenerateScriptInput is the input for the synchronous generation endpoints.
type GenerateScriptInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body struct {
		Feedback string `json:"feedback,omitempty" maxLength:"2000" doc:"Revision notes for the model"`
		Locale   string `json:"locale,omitempty" maxLength:"16" doc:"Prompt locale, e.g. zh-CN"`
	}
}

// GenerateFullScript runs the full-script job synchronously.
func (h *ProjectHandler) GenerateFullScript(ctx context.Context, input *GenerateScriptInput) (*ProjectOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	payload := models.JobPayload{Feedback: input.Body.Feedback, Locale: input.Body.Locale}
	job, err := runJobSync(ctx, h.jobs, h.exec, project.ID, models.JobTypeFullScript, payload)
	if err != nil {
		if err == errProjectBusy {
			return nil, err
		}
		h.logger.Error("failed to run full script job", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if job.Status == models.JobStatusFailed {
		return nil, jobFailure(job, h.logger)
	}

	return h.reload(ctx, project.ID)
}

// UpdateFullScriptInput is the input for replacing the screenplay text.
type UpdateFullScriptInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body struct {
		FullScript           string `json:"full_script" minLength:"1" doc:"Replacement screenplay text"`
		InvalidateDownstream bool   `json:"invalidate_downstream" doc:"Reset all segments, canon, and the final video"`
	}
}

// UpdateFullScript replaces the screenplay text.
func (h *ProjectHandler) UpdateFullScript(ctx context.Context, input *UpdateFullScriptInput) (*ProjectOutput, error) {
	project, err := h.scope.Project(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	project.FullScript = strings.TrimSpace(input.Body.FullScript)

	if input.Body.InvalidateDownstream {
		if err := h.segments.InvalidateAll(ctx, project.ID); err != nil {
			h.logger.Error("failed to invalidate segments", slog.String("error", err.Error()))
			return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
		}
		project.CanonSummaries = ""
		project.CurrentSegmentIndex = 0
		project.LastFramePath = ""
		discardFinalVideo(project)
	}

	if err := h.projects.Update(ctx, project); err != nil {
		h.logger.Error("failed to update project", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	if err := storage.WriteText(h.layout.FullScriptPath(project.ID.String()), project.FullScript); err != nil {
		h.logger.Error("failed to write full script file", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}

	return h.reload(ctx, project.ID)
}

// reload fetches the current project state for a mutation response.
func (h *ProjectHandler) reload(ctx context.Context, id models.ULID) (*ProjectOutput, error) {
	project, err := h.projects.GetByID(ctx, id)
	if err != nil || project == nil {
		if err != nil {
			h.logger.Error("failed to reload project", slog.String("error", err.Error()))
		}
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	return h.detail(ctx, project, fullDetail)
}

func (h *ProjectHandler) detail(ctx context.Context, project *models.Project, opts detailOptions) (*ProjectOutput, error) {
	segments, err := h.segments.ListByProject(ctx, project.ID)
	if err != nil {
		h.logger.Error("failed to list segments", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("INTERNAL_ERROR")
	}
	return &ProjectOutput{Body: ProjectDetailFromModel(project, segments, opts)}, nil
}

// discardFinalVideo clears the assembled output reference and removes the
// stale file.
func discardFinalVideo(project *models.Project) {
	if project.FinalVideoPath != "" {
		_ = os.Remove(project.FinalVideoPath)
	}
	project.FinalVideoPath = ""
}
