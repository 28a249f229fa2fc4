// Package handlers provides the HTTP API handlers for reelsmith.
package handlers

import (
	"fmt"
	"time"

	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/workflow"
)

// SegmentDetail represents a segment in API responses. Indices without a
// database row are reported with synthetic pending defaults.
type SegmentDetail struct {
	ProjectID        models.ULID          `json:"project_id"`
	Index            int                  `json:"index"`
	Status           models.SegmentStatus `json:"status"`
	SegmentScript    string               `json:"segment_script,omitempty"`
	VideoPrompt      string               `json:"video_prompt,omitempty"`
	VideoDescription string               `json:"video_description,omitempty"`
	VideoURL         string               `json:"video_url,omitempty"`
	FrameURL         string               `json:"frame_url,omitempty"`
	Warnings         []string             `json:"warnings"`
}

// SegmentFromModel converts a segment row to a response.
func SegmentFromModel(s *models.Segment) SegmentDetail {
	detail := SegmentDetail{
		ProjectID:        s.ProjectID,
		Index:            s.Index,
		Status:           s.Status,
		SegmentScript:    s.SegmentScript,
		VideoPrompt:      s.VideoPrompt,
		VideoDescription: s.VideoDescription,
		Warnings:         make([]string, 0),
	}
	if s.VideoPath != "" {
		detail.VideoURL = fmt.Sprintf("/api/projects/%s/segments/%d/video", s.ProjectID, s.Index)
	}
	if s.LastFramePath != "" {
		detail.FrameURL = fmt.Sprintf("/api/projects/%s/segments/%d/frame", s.ProjectID, s.Index)
	}
	return detail
}

// ProjectDetail represents a project with its segment list.
type ProjectDetail struct {
	ID                   models.ULID       `json:"id"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	UserPrompt           string            `json:"user_prompt"`
	Pacing               models.Pacing     `json:"pacing"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	SegmentDuration      int               `json:"segment_duration"`
	NumSegments          int               `json:"num_segments"`
	CurrentSegmentIndex  int               `json:"current_segment_index"`
	NextAction           models.NextAction `json:"next_action"`
	HasFullScript        bool              `json:"has_full_script"`
	FullScript           string            `json:"full_script,omitempty"`
	CanonSummaries       string            `json:"canon_summaries,omitempty"`
	FinalVideoPath       string            `json:"final_video_path,omitempty"`
	FinalVideoURL        string            `json:"final_video_url,omitempty"`
	Segments             []SegmentDetail   `json:"segments"`
}

// detailOptions controls which heavyweight fields a ProjectDetail carries.
type detailOptions struct {
	IncludeFullScript bool
	IncludeCanon      bool
}

// fullDetail is used by mutation responses so clients see the effect of
// their change without a second request.
var fullDetail = detailOptions{IncludeFullScript: true, IncludeCanon: true}

// ProjectDetailFromModel builds a ProjectDetail. The segment list is padded
// with synthetic pending entries up to the project's segment count.
func ProjectDetailFromModel(p *models.Project, segments []*models.Segment, opts detailOptions) ProjectDetail {
	expected := p.TotalSegments()
	synthetic := make([]*models.Segment, 0, expected)
	for i := 0; i < expected; i++ {
		synthetic = append(synthetic, workflow.SyntheticSegment(p.ID, i))
	}
	merged := workflow.MergeSegments(synthetic, segments)

	detail := ProjectDetail{
		ID:                   p.ID,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		UserPrompt:           p.UserPrompt,
		Pacing:               p.Pacing,
		TotalDurationSeconds: p.TotalDurationSeconds,
		SegmentDuration:      p.SegmentDuration,
		NumSegments:          expected,
		CurrentSegmentIndex:  p.CurrentSegmentIndex,
		NextAction:           workflow.DeriveNextAction(p, segments),
		HasFullScript:        p.FullScript != "",
		FinalVideoPath:       p.FinalVideoPath,
		Segments:             make([]SegmentDetail, 0, len(merged)),
	}
	if opts.IncludeFullScript {
		detail.FullScript = p.FullScript
	}
	if opts.IncludeCanon {
		detail.CanonSummaries = p.CanonSummaries
	}
	if p.FinalVideoPath != "" {
		detail.FinalVideoURL = fmt.Sprintf("/api/projects/%s/final", p.ID)
	}
	for _, s := range merged {
		detail.Segments = append(detail.Segments, SegmentFromModel(s))
	}
	return detail
}

// ProjectSummary is the list-view representation of a project.
type ProjectSummary struct {
	ID                   models.ULID       `json:"id"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	UserPrompt           string            `json:"user_prompt"`
	Pacing               models.Pacing     `json:"pacing"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	SegmentDuration      int               `json:"segment_duration"`
	NumSegments          int               `json:"num_segments"`
	CurrentSegmentIndex  int               `json:"current_segment_index"`
	NextAction           models.NextAction `json:"next_action"`
	HasFullScript        bool              `json:"has_full_script"`
	HasFinalVideo        bool              `json:"has_final_video"`
	SegmentsCompleted    int               `json:"segments_completed"`
	SegmentsWithVideo    int               `json:"segments_with_video"`
}

// ProjectSummaryFromModel builds a ProjectSummary with per-status counters.
func ProjectSummaryFromModel(p *models.Project, segments []*models.Segment) ProjectSummary {
	summary := ProjectSummary{
		ID:                   p.ID,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		UserPrompt:           p.UserPrompt,
		Pacing:               p.Pacing,
		TotalDurationSeconds: p.TotalDurationSeconds,
		SegmentDuration:      p.SegmentDuration,
		NumSegments:          p.TotalSegments(),
		CurrentSegmentIndex:  p.CurrentSegmentIndex,
		NextAction:           workflow.DeriveNextAction(p, segments),
		HasFullScript:        p.FullScript != "",
		HasFinalVideo:        p.FinalVideoPath != "",
	}
	for _, s := range segments {
		if s.Status == models.SegmentStatusCompleted {
			summary.SegmentsCompleted++
		}
		if s.VideoPath != "" {
			summary.SegmentsWithVideo++
		}
	}
	return summary
}

// JobResponse represents a job in API responses, with the result decoded.
type JobResponse struct {
	ID        models.ULID      `json:"id"`
	ProjectID models.ULID      `json:"project_id"`
	Type      models.JobType   `json:"type"`
	Status    models.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Result    models.JobResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobFromModel converts a job row to a response.
func JobFromModel(j *models.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		ProjectID: j.ProjectID,
		Type:      j.Type,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   j.Message,
		Error:     j.Error,
		Result:    j.DecodeResult(),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
