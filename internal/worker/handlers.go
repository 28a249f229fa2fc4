package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/reelsmith/reelsmith/internal/canon"
	"github.com/reelsmith/reelsmith/internal/llm"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/storage"
	"github.com/reelsmith/reelsmith/internal/workflow"
)

// canonKeep is how many recent canon items feed a segment generation call.
const canonKeep = 3

// canonDescriptionMax caps the compacted canon description in runes.
const canonDescriptionMax = 120

func (w *Worker) handleFullScript(ctx context.Context, job *models.Job, project *models.Project, payload models.JobPayload) (map[string]any, error) {
	if err := w.checkpoint(ctx, job, 5, "jobmsg.full_script.invalidating", nil); err != nil {
		return nil, err
	}

	// A new full script restarts the pipeline: every segment, the canon log,
	// the cursor, the continuity frame and the assembled output are stale.
	if err := w.segments.InvalidateAll(ctx, project.ID); err != nil {
		return nil, err
	}
	project.CanonSummaries = ""
	project.CurrentSegmentIndex = 0
	project.LastFramePath = ""
	w.discardFinalVideo(project)
	if err := w.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	if err := w.checkpoint(ctx, job, 20, "jobmsg.full_script.calling_llm", nil); err != nil {
		return nil, err
	}
	pair := llm.ScriptwriterPrompts(payload.Locale, llm.ScriptwriterParams{
		TotalDuration:   project.TotalDurationSeconds,
		NumSegments:     project.TotalSegments(),
		SegmentDuration: project.SegmentDuration,
		UserPrompt:      project.UserPrompt,
		Pacing:          string(project.Pacing),
		Feedback:        payload.Feedback,
	})
	text, err := w.model.Chat(ctx, pair.System, pair.User)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.ErrLLMEmptyResponse
	}

	project.FullScript = text
	if err := w.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	if err := w.checkpoint(ctx, job, 90, "jobmsg.full_script.writing", nil); err != nil {
		return nil, err
	}
	if err := storage.WriteText(w.layout.FullScriptPath(project.ID.String()), text); err != nil {
		return nil, err
	}

	return map[string]any{"full_script_len": len([]rune(text))}, nil
}

func (w *Worker) handleSegmentGenerate(ctx context.Context, job *models.Job, project *models.Project, payload models.JobPayload) (map[string]any, error) {
	if strings.TrimSpace(project.FullScript) == "" {
		return nil, models.ErrFullScriptMissing
	}
	idx, err := requireIndex(payload, project)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"n": fmt.Sprintf("%03d", idx)}

	if err := w.checkpoint(ctx, job, 5, "jobmsg.segment.invalidating", params); err != nil {
		return nil, err
	}

	// Regenerating segment i invalidates everything downstream and rewinds
	// the cursor and continuity frame to just before i.
	if err := w.segments.InvalidateAfter(ctx, project.ID, idx); err != nil {
		return nil, err
	}
	existing, err := w.segments.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	project.CanonSummaries = canon.BeforeIndex(project.CanonSummaries, idx)
	project.LastFramePath = workflow.LatestFrameBefore(existing, idx)
	project.CurrentSegmentIndex = idx
	w.discardFinalVideo(project)
	if err := w.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	if err := w.checkpoint(ctx, job, 20, "jobmsg.segment.calling_llm", params); err != nil {
		return nil, err
	}
	start, end := project.SegmentTimeRange(idx)
	pair := llm.SegmenterPrompts(payload.Locale, llm.SegmenterParams{
		SegmentNumber:  idx + 1,
		TimeRange:      fmt.Sprintf("%ds-%ds", start, end),
		FullScript:     project.FullScript,
		CanonSummaries: canon.Recent(project.CanonSummaries, canonKeep),
		CurrentTime:    end,
		Feedback:       payload.Feedback,
	})
	text, err := w.model.Chat(ctx, pair.System, pair.User)
	if err != nil {
		return nil, err
	}
	draft := workflow.ExtractJSON(text)

	segment := &models.Segment{
		ProjectID:     project.ID,
		Index:         idx,
		SegmentScript: strings.TrimSpace(draft.Script),
		VideoPrompt:   strings.TrimSpace(draft.VideoPrompt),
		Status:        models.SegmentStatusScriptReady,
	}
	if err := w.segments.Upsert(ctx, segment); err != nil {
		return nil, err
	}

	if err := w.checkpoint(ctx, job, 90, "jobmsg.segment.writing", params); err != nil {
		return nil, err
	}
	path := w.layout.SegmentTextPath(project.ID.String(), idx)
	if err := storage.WriteText(path, workflow.ExportSegmentText(project, segment)); err != nil {
		return nil, err
	}

	return map[string]any{"index": idx}, nil
}

func (w *Worker) handleExtractFrame(ctx context.Context, job *models.Job, project *models.Project, payload models.JobPayload) (map[string]any, error) {
	idx, err := requireIndex(payload, project)
	if err != nil {
		return nil, err
	}
	segment, err := w.requireVideo(ctx, project, idx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"n": fmt.Sprintf("%03d", idx)}
	if err := w.checkpoint(ctx, job, 30, "jobmsg.frame.extracting", params); err != nil {
		return nil, err
	}

	frame, err := w.extractFrame(ctx, project, segment)
	if err != nil {
		return nil, err
	}
	return map[string]any{"index": idx, "frame_path": frame}, nil
}

func (w *Worker) handleAnalyze(ctx context.Context, job *models.Job, project *models.Project, payload models.JobPayload) (map[string]any, error) {
	idx, err := requireIndex(payload, project)
	if err != nil {
		return nil, err
	}
	segment, err := w.requireVideo(ctx, project, idx)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"n": fmt.Sprintf("%03d", idx)}

	segment.Status = models.SegmentStatusAnalyzing
	if err := w.segments.Update(ctx, segment); err != nil {
		return nil, err
	}

	data, err := w.analyze(ctx, job, project, segment, payload, params)
	if err != nil {
		// Failed analysis is retryable; the segment keeps its video.
		segment.Status = models.SegmentStatusFailed
		if uerr := w.segments.Update(ctx, segment); uerr != nil {
			w.logger.Error("failed to mark segment failed", slog.String("error", uerr.Error()))
		}
		return nil, err
	}
	return data, nil
}

func (w *Worker) analyze(ctx context.Context, job *models.Job, project *models.Project, segment *models.Segment, payload models.JobPayload, params map[string]string) (map[string]any, error) {
	idx := segment.Index

	if err := w.checkpoint(ctx, job, 15, "jobmsg.analyze.extracting_frame", params); err != nil {
		return nil, err
	}
	frame := segment.LastFramePath
	if frame == "" || !fileExists(frame) {
		var err error
		frame, err = w.extractFrame(ctx, project, segment)
		if err != nil {
			return nil, err
		}
	}

	if err := w.checkpoint(ctx, job, 55, "jobmsg.analyze.calling_llm", params); err != nil {
		return nil, err
	}
	start, end := project.SegmentTimeRange(idx)
	pair := llm.AnalyzerPrompts(payload.Locale, llm.AnalyzerParams{
		SegmentScript: segment.SegmentScript,
		TimeRange:     fmt.Sprintf("%ds-%ds", start, end),
	})
	raw, err := w.model.ChatWithImage(ctx, pair.System, pair.User, frame)
	if err != nil {
		return nil, err
	}

	segment.VideoDescription = strings.TrimSpace(raw)
	segment.Status = models.SegmentStatusCompleted
	if err := w.segments.Update(ctx, segment); err != nil {
		return nil, err
	}

	item := canon.Format(idx, start, end, canon.CompactDescription(raw, canonDescriptionMax))
	project.CanonSummaries = canon.ReplaceByIndex(project.CanonSummaries, idx, item)
	project.LastFramePath = frame
	project.CurrentSegmentIndex = idx + 1
	w.discardFinalVideo(project)
	if err := w.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	return map[string]any{"index": idx, "description_len": len([]rune(segment.VideoDescription))}, nil
}

func (w *Worker) handleAssemble(ctx context.Context, job *models.Job, project *models.Project) (map[string]any, error) {
	expected := project.TotalSegments()
	segments, err := w.segments.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*models.Segment, len(segments))
	for _, s := range segments {
		byIndex[s.Index] = s
	}

	inputs := make([]string, 0, expected)
	for i := 0; i < expected; i++ {
		s := byIndex[i]
		if s == nil || s.VideoPath == "" || !fileExists(s.VideoPath) {
			return nil, fmt.Errorf("segment %d: %w", i, models.ErrSegmentVideoMissing)
		}
		inputs = append(inputs, s.VideoPath)
	}

	if err := w.checkpoint(ctx, job, 20, "jobmsg.assemble.running_ffmpeg", nil); err != nil {
		return nil, err
	}
	if err := w.layout.EnsureProjectDirs(project.ID.String()); err != nil {
		return nil, err
	}
	out := w.layout.FinalVideoPath(project.ID.String())
	if err := w.media.Concatenate(ctx, inputs, out); err != nil {
		return nil, err
	}

	project.FinalVideoPath = out
	if err := w.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return map[string]any{"final_video_path": out, "num_segments": expected}, nil
}

// extractFrame extracts the last frame of the segment's video, replacing any
// prior frame, and persists the new path on the segment row.
func (w *Worker) extractFrame(ctx context.Context, project *models.Project, segment *models.Segment) (string, error) {
	out := w.layout.FramePath(project.ID.String(), segment.Index)
	_ = os.Remove(out)
	frame, err := w.media.ExtractLastFrame(ctx, segment.VideoPath, out)
	if err != nil {
		return "", err
	}
	segment.LastFramePath = frame
	if err := w.segments.Update(ctx, segment); err != nil {
		return "", err
	}
	return frame, nil
}

// requireVideo loads the segment and verifies its uploaded video is present
// on disk.
func (w *Worker) requireVideo(ctx context.Context, project *models.Project, idx int) (*models.Segment, error) {
	segment, err := w.segments.Get(ctx, project.ID, idx)
	if err != nil {
		return nil, err
	}
	if segment == nil || segment.VideoPath == "" || !fileExists(segment.VideoPath) {
		return nil, models.ErrSegmentVideoMissing
	}
	return segment, nil
}

// discardFinalVideo clears the assembled output reference and removes the
// file, since any pipeline change makes it stale.
func (w *Worker) discardFinalVideo(project *models.Project) {
	if project.FinalVideoPath != "" {
		_ = os.Remove(project.FinalVideoPath)
	}
	project.FinalVideoPath = ""
}

func requireIndex(payload models.JobPayload, project *models.Project) (int, error) {
	if payload.Index == nil {
		return 0, models.ErrIndexOutOfRange
	}
	idx := *payload.Index
	if idx < 0 || idx >= project.TotalSegments() {
		return 0, models.ErrIndexOutOfRange
	}
	return idx, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
