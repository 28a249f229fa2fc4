package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/http/middleware"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/storage"
	"github.com/reelsmith/reelsmith/internal/workflow"
)

// uploadChunkSize is the copy granularity for streaming uploads.
const uploadChunkSize = 1 << 20

// frameExtractWarning is surfaced when the uploaded video's last frame
// cannot be extracted. The upload itself still succeeds.
const frameExtractWarning = "Failed to extract last frame"

// FileHandler serves the binary endpoints: video upload and the video,
// frame, and final render downloads. These bypass the OpenAPI layer and
// register directly on the router.
type FileHandler struct {
	projects    *repository.ProjectRepository
	segments    *repository.SegmentRepository
	layout      *storage.Layout
	media       *ffmpeg.Toolkit
	maxUploadMB int
	authEnabled bool
	logger      *slog.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(
	projects *repository.ProjectRepository,
	segments *repository.SegmentRepository,
	layout *storage.Layout,
	media *ffmpeg.Toolkit,
	maxUploadMB int,
	authEnabled bool,
	log *slog.Logger,
) *FileHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FileHandler{
		projects:    projects,
		segments:    segments,
		layout:      layout,
		media:       media,
		maxUploadMB: maxUploadMB,
		authEnabled: authEnabled,
		logger:      log,
	}
}

// RegisterRoutes registers the binary routes on the router.
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/projects/{id}/segments/{index}/video", h.UploadVideo)
	r.Get("/api/projects/{id}/segments/{index}/video", h.GetVideo)
	r.Get("/api/projects/{id}/segments/{index}/frame", h.GetFrame)
	r.Get("/api/projects/{id}/segments/{index}/frame/download", h.DownloadFrame)
	r.Get("/api/projects/{id}/final", h.GetFinal)
}

// resolve loads the project and segment index from the URL, enforcing
// ownership and index bounds. A nil project means the response was already
// written.
func (h *FileHandler) resolve(w http.ResponseWriter, r *http.Request) (*models.Project, int, bool) {
	id, err := models.ParseULID(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteDetail(w, http.StatusNotFound, "project not found")
		return nil, 0, false
	}
	project, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load project", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return nil, 0, false
	}
	if project == nil {
		middleware.WriteDetail(w, http.StatusNotFound, "project not found")
		return nil, 0, false
	}
	if h.authEnabled {
		if principal := middleware.Principal(r.Context()); principal != "" {
			owned, err := h.projects.IsOwner(r.Context(), project.ID, principal)
			if err != nil {
				h.logger.Error("failed to check ownership", slog.String("error", err.Error()))
				middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
				return nil, 0, false
			}
			if !owned {
				middleware.WriteDetail(w, http.StatusNotFound, "project not found")
				return nil, 0, false
			}
		}
	}

	index := 0
	if raw := chi.URLParam(r, "index"); raw != "" {
		index, err = strconv.Atoi(raw)
		if err != nil || index < 0 || index >= project.TotalSegments() {
			middleware.WriteDetail(w, http.StatusBadRequest, "INDEX_OUT_OF_RANGE")
			return nil, 0, false
		}
	}

	return project, index, true
}

// UploadVideo streams a segment's input video to disk. The upload clears any
// prior analysis for the segment and discards the assembled final video.
func (h *FileHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	project, index, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	reader, err := r.MultipartReader()
	if err != nil {
		middleware.WriteDetail(w, http.StatusBadRequest, "UNSUPPORTED_VIDEO_TYPE")
		return
	}

	part, filename := firstFilePart(reader)
	if part == nil {
		middleware.WriteDetail(w, http.StatusBadRequest, "UNSUPPORTED_VIDEO_TYPE")
		return
	}
	defer part.Close()

	ext := strings.ToLower(filepath.Ext(filename))
	if !storage.AllowedVideoExt(ext) {
		middleware.WriteDetail(w, http.StatusBadRequest, "UNSUPPORTED_VIDEO_TYPE")
		return
	}

	if err := h.layout.EnsureProjectDirs(project.ID.String()); err != nil {
		h.logger.Error("failed to create project dirs", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}

	dest := h.layout.InputVideoPath(project.ID.String(), index, ext)
	if err := h.streamToFile(part, dest); err != nil {
		if err == errUploadTooLarge {
			middleware.WriteDetail(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Error("failed to store upload", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}

	segment, err := h.segments.Get(ctx, project.ID, index)
	if err != nil {
		h.logger.Error("failed to load segment", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	if segment == nil {
		segment = workflow.SyntheticSegment(project.ID, index)
	}

	// A re-upload with a different extension leaves the old file orphaned.
	if segment.VideoPath != "" && segment.VideoPath != dest {
		if err := os.Remove(segment.VideoPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove replaced video", slog.String("error", err.Error()))
		}
	}

	segment.VideoPath = dest
	segment.VideoDescription = ""
	segment.LastFramePath = ""
	if segment.SegmentScript != "" {
		segment.Status = models.SegmentStatusScriptReady
	} else {
		segment.Status = models.SegmentStatusWaitingVideo
	}

	warnings := make([]string, 0, 1)
	framePath := h.layout.FramePath(project.ID.String(), index)
	if _, err := h.media.ExtractLastFrame(ctx, dest, framePath); err != nil {
		h.logger.Warn("failed to extract last frame",
			slog.String("project_id", project.ID.String()),
			slog.Int("index", index),
			slog.String("error", err.Error()),
		)
		warnings = append(warnings, frameExtractWarning)
	} else {
		segment.LastFramePath = framePath
	}

	if err := h.segments.Upsert(ctx, segment); err != nil {
		h.logger.Error("failed to upsert segment", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}

	if project.FinalVideoPath != "" {
		discardFinalVideo(project)
		if err := h.projects.Update(ctx, project); err != nil {
			h.logger.Error("failed to update project", slog.String("error", err.Error()))
			middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
			return
		}
	}

	detail := SegmentFromModel(segment)
	detail.Warnings = warnings

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(detail); err != nil {
		h.logger.Warn("failed to encode upload response", slog.String("error", err.Error()))
	}
}

// GetVideo streams the segment's uploaded input video.
func (h *FileHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	project, index, ok := h.resolve(w, r)
	if !ok {
		return
	}
	segment := h.loadSegment(w, r.Context(), project.ID, index)
	if segment == nil {
		return
	}
	h.serveFile(w, r, segment.VideoPath)
}

// GetFrame streams the segment's extracted last frame.
func (h *FileHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	project, index, ok := h.resolve(w, r)
	if !ok {
		return
	}
	segment := h.loadSegment(w, r.Context(), project.ID, index)
	if segment == nil {
		return
	}
	h.serveFile(w, r, segment.LastFramePath)
}

// DownloadFrame streams the frame as an attachment.
func (h *FileHandler) DownloadFrame(w http.ResponseWriter, r *http.Request) {
	project, index, ok := h.resolve(w, r)
	if !ok {
		return
	}
	segment := h.loadSegment(w, r.Context(), project.ID, index)
	if segment == nil {
		return
	}
	if segment.LastFramePath == "" || !fileExists(segment.LastFramePath) {
		middleware.WriteDetail(w, http.StatusNotFound, "FILE_NOT_FOUND")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="frame_%03d.jpg"`, index))
	http.ServeFile(w, r, segment.LastFramePath)
}

// GetFinal streams the assembled final video.
func (h *FileHandler) GetFinal(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.serveFile(w, r, project.FinalVideoPath)
}

func (h *FileHandler) loadSegment(w http.ResponseWriter, ctx context.Context, projectID models.ULID, index int) *models.Segment {
	segment, err := h.segments.Get(ctx, projectID, index)
	if err != nil {
		h.logger.Error("failed to load segment", slog.String("error", err.Error()))
		middleware.WriteDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return nil
	}
	if segment == nil {
		middleware.WriteDetail(w, http.StatusNotFound, "FILE_NOT_FOUND")
		return nil
	}
	return segment
}

func (h *FileHandler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	if path == "" || !fileExists(path) {
		middleware.WriteDetail(w, http.StatusNotFound, "FILE_NOT_FOUND")
		return
	}
	http.ServeFile(w, r, path)
}

// firstFilePart scans the multipart stream for the first part carrying a
// filename, skipping plain form fields.
func firstFilePart(reader *multipart.Reader) (*multipart.Part, string) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, ""
		}
		if part.FileName() != "" {
			return part, part.FileName()
		}
		part.Close()
	}
}

// errUploadTooLarge is returned by streamToFile when the size cap is hit.
var errUploadTooLarge = fmt.Errorf("upload exceeds size limit")

// streamToFile copies the upload to a temporary file next to dest and
// renames it into place. The partial file is removed on any failure,
// including the size cap.
func (h *FileHandler) streamToFile(src io.Reader, dest string) error {
	tmp := dest + ".upload"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}

	limit := int64(h.maxUploadMB) << 20
	var total int64
	buf := make([]byte, uploadChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if limit > 0 && total > limit {
				f.Close()
				os.Remove(tmp)
				return errUploadTooLarge
			}
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				os.Remove(tmp)
				return fmt.Errorf("writing upload: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("reading upload: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing upload file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("placing upload file: %w", err)
	}
	return nil
}
