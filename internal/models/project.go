package models

import "gorm.io/gorm"

// Pacing controls the narrative tempo requested for a project's script.
type Pacing string

const (
	// PacingNormal is the default tempo.
	PacingNormal Pacing = "normal"
	// PacingSlow favors longer, calmer beats.
	PacingSlow Pacing = "slow"
	// PacingUrgent favors short, dense beats.
	PacingUrgent Pacing = "urgent"
)

// Valid reports whether the pacing value is one of the accepted constants.
func (p Pacing) Valid() bool {
	switch p {
	case PacingNormal, PacingSlow, PacingUrgent:
		return true
	}
	return false
}

// NextAction is the pipeline step a client should take next for a project.
type NextAction string

const (
	ActionGenerateFullScript NextAction = "generate_full_script"
	ActionGenerateSegment    NextAction = "generate_segment"
	ActionUploadVideo        NextAction = "upload_video"
	ActionAnalyze            NextAction = "analyze"
	ActionWaitAnalyze        NextAction = "wait_analyze"
	ActionRetry              NextAction = "retry"
	ActionAssemble           NextAction = "assemble"
	ActionDone               NextAction = "done"
	ActionUnknown            NextAction = "unknown"
)

// Project is the root aggregate of the production pipeline. Its canon
// summaries and cursor drive the segment-by-segment workflow.
type Project struct {
	BaseModel

	// UserPrompt is the creative brief the full script is generated from.
	UserPrompt string `gorm:"type:text;not null" json:"user_prompt"`

	// Pacing is the requested narrative tempo.
	Pacing Pacing `gorm:"size:20;not null;default:'normal'" json:"pacing"`

	// TotalDurationSeconds is the target length of the final video.
	TotalDurationSeconds int `gorm:"not null" json:"total_duration_seconds"`

	// SegmentDuration is the fixed per-segment length in seconds.
	SegmentDuration int `gorm:"not null;default:15" json:"segment_duration"`

	// FullScript is the generated global screenplay, empty until generated.
	FullScript string `gorm:"type:text" json:"full_script,omitempty"`

	// CanonSummaries is the separator-joined context log consumed by
	// segment generation. See the canon package for the wire format.
	CanonSummaries string `gorm:"type:text" json:"canon_summaries,omitempty"`

	// CurrentSegmentIndex is the 0-based workflow cursor.
	CurrentSegmentIndex int `gorm:"not null;default:0" json:"current_segment_index"`

	// LastFramePath is the most recent extracted frame, used to seed
	// visual continuity for the next segment.
	LastFramePath string `gorm:"size:1024" json:"last_frame_path,omitempty"`

	// FinalVideoPath is set once assembly succeeds.
	FinalVideoPath string `gorm:"size:1024" json:"final_video_path,omitempty"`
}

// TableName returns the table name for Project.
func (Project) TableName() string {
	return "projects"
}

// TotalSegments returns the authoritative segment count,
// ceil(total_duration_seconds / segment_duration).
func (p *Project) TotalSegments() int {
	if p.SegmentDuration <= 0 {
		return 0
	}
	return (p.TotalDurationSeconds + p.SegmentDuration - 1) / p.SegmentDuration
}

// SegmentTimeRange returns the [start, end) second offsets of segment i,
// clamped to the project's total duration.
func (p *Project) SegmentTimeRange(i int) (start, end int) {
	start = i * p.SegmentDuration
	end = (i + 1) * p.SegmentDuration
	if end > p.TotalDurationSeconds {
		end = p.TotalDurationSeconds
	}
	return start, end
}

// ProjectOwner binds a project to the principal that owns it.
// Ownership misses are reported as not-found to callers.
type ProjectOwner struct {
	ProjectID   ULID   `gorm:"primaryKey;type:varchar(26)" json:"project_id"`
	PrincipalID string `gorm:"primaryKey;size:255" json:"principal_id"`
	CreatedAt   Time   `json:"created_at"`
}

// TableName returns the table name for ProjectOwner.
func (ProjectOwner) TableName() string {
	return "project_owners"
}

// BeforeCreate validates the project row.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if err := p.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if !p.Pacing.Valid() {
		p.Pacing = PacingNormal
	}
	return nil
}
