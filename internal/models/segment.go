package models

// SegmentStatus represents where a segment sits in the production lifecycle.
type SegmentStatus string

const (
	// SegmentStatusPending indicates no artifacts exist yet.
	SegmentStatusPending SegmentStatus = "pending"
	// SegmentStatusScriptReady indicates script and prompt are generated.
	SegmentStatusScriptReady SegmentStatus = "script_ready"
	// SegmentStatusWaitingVideo indicates a video was uploaded but not analyzed.
	SegmentStatusWaitingVideo SegmentStatus = "waiting_video"
	// SegmentStatusAnalyzing indicates multimodal analysis is in progress.
	SegmentStatusAnalyzing SegmentStatus = "analyzing"
	// SegmentStatusCompleted indicates video, frame, and description all exist.
	SegmentStatusCompleted SegmentStatus = "completed"
	// SegmentStatusFailed is terminal but retryable.
	SegmentStatusFailed SegmentStatus = "failed"
)

// Segment is one fixed-duration slice of a project's video.
// (ProjectID, Index) is unique.
type Segment struct {
	BaseModel

	ProjectID ULID `gorm:"type:varchar(26);not null;uniqueIndex:uidx_segments_project_index" json:"project_id"`

	// Index is the 0-based position within the project.
	Index int `gorm:"column:seg_index;not null;uniqueIndex:uidx_segments_project_index" json:"index"`

	// SegmentScript is the narration/script text for this slice.
	SegmentScript string `gorm:"type:text" json:"segment_script,omitempty"`

	// VideoPrompt is the generation prompt handed to the user/video model.
	VideoPrompt string `gorm:"type:text" json:"video_prompt,omitempty"`

	// VideoPath is the uploaded input video on disk.
	VideoPath string `gorm:"size:1024" json:"video_path,omitempty"`

	// VideoDescription is the multimodal analysis of the uploaded video.
	VideoDescription string `gorm:"type:text" json:"video_description,omitempty"`

	// LastFramePath is the extracted final frame of the uploaded video.
	LastFramePath string `gorm:"size:1024" json:"last_frame_path,omitempty"`

	Status SegmentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
}

// TableName returns the table name for Segment.
func (Segment) TableName() string {
	return "segments"
}

// ClearMedia resets all derived media fields. Used when a segment's script
// or prompt changes and prior uploads/analysis no longer apply.
func (s *Segment) ClearMedia() {
	s.VideoPath = ""
	s.VideoDescription = ""
	s.LastFramePath = ""
}

// Invalidate demotes the segment to pending and clears everything derived.
func (s *Segment) Invalidate() {
	s.SegmentScript = ""
	s.VideoPrompt = ""
	s.ClearMedia()
	s.Status = SegmentStatusPending
}
