package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// JobType represents the type of job to execute.
type JobType string

const (
	// JobTypeFullScript generates the global screenplay.
	JobTypeFullScript JobType = "full_script"
	// JobTypeSegmentGenerate generates one segment's script and prompt.
	JobTypeSegmentGenerate JobType = "segment_generate"
	// JobTypeExtractFrame extracts the last frame of a segment's video.
	JobTypeExtractFrame JobType = "extract_frame"
	// JobTypeAnalyze runs multimodal analysis on a segment's video.
	JobTypeAnalyze JobType = "analyze"
	// JobTypeAssemble concatenates all segment videos into the final output.
	JobTypeAssemble JobType = "assemble"
)

// Valid reports whether the job type is one of the accepted constants.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeFullScript, JobTypeSegmentGenerate, JobTypeExtractFrame,
		JobTypeAnalyze, JobTypeAssemble:
		return true
	}
	return false
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting to be executed.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the job is currently executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusSucceeded indicates the job completed successfully.
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCanceled indicates the job was canceled before completion.
	JobStatusCanceled JobStatus = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// UIMessage is a localization-ready message surfaced to clients through
// a job's result. The key resolves against the front-end message catalog.
type UIMessage struct {
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

// JobPayload is the structured input of a job, stored as JSON text.
type JobPayload struct {
	Index    *int   `json:"index,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// JobResult is the structured output of a job, stored as JSON text.
// UIMessage is always present once a job has been queued.
type JobResult struct {
	Data      map[string]any `json:"data,omitempty"`
	UIMessage *UIMessage     `json:"ui_message,omitempty"`
}

// Job represents a persisted unit of asynchronous work tied to a project.
type Job struct {
	BaseModel

	ProjectID ULID `gorm:"type:varchar(26);not null;index" json:"project_id"`

	Type JobType `gorm:"not null;size:32;index" json:"type"`

	Status JobStatus `gorm:"not null;default:'queued';size:20;index" json:"status"`

	// Progress is a percentage in [0, 100].
	Progress int `gorm:"not null;default:0" json:"progress"`

	// Message is a free-text status line, kept for older clients.
	Message string `gorm:"size:255" json:"message,omitempty"`

	// Payload is the JSON-encoded JobPayload.
	Payload string `gorm:"type:text" json:"payload,omitempty"`

	// Result is the JSON-encoded JobResult.
	Result string `gorm:"type:text" json:"result,omitempty"`

	// Error holds the failure message for failed jobs.
	Error string `gorm:"type:text" json:"error,omitempty"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// DecodePayload parses the JSON payload. An empty payload decodes to the
// zero value.
func (j *Job) DecodePayload() (JobPayload, error) {
	var p JobPayload
	if j.Payload == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(j.Payload), &p); err != nil {
		return p, err
	}
	return p, nil
}

// SetPayload encodes and stores the payload.
func (j *Job) SetPayload(p JobPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	j.Payload = string(data)
	return nil
}

// DecodeResult parses the JSON result. Malformed or empty results decode to
// the zero value so readers never fail on legacy rows.
func (j *Job) DecodeResult() JobResult {
	var r JobResult
	if j.Result == "" {
		return r
	}
	_ = json.Unmarshal([]byte(j.Result), &r)
	return r
}

// SetResult encodes and stores the result.
func (j *Job) SetResult(r JobResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	j.Result = string(data)
	return nil
}

// SetUIMessage updates only the ui_message of the stored result, preserving
// any data the handler has already attached.
func (j *Job) SetUIMessage(key string, params map[string]string) {
	r := j.DecodeResult()
	r.UIMessage = &UIMessage{Key: key, Params: params}
	// Marshal of plain maps and strings cannot fail.
	_ = j.SetResult(r)
}

// Validate performs basic validation on the job.
func (j *Job) Validate() error {
	if j.Type == "" {
		return ErrJobTypeRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the job and generates its ULID.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return j.Validate()
}
