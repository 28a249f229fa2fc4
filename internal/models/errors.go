package models

import "errors"

// Domain sentinel errors shared between handlers and the worker.
var (
	// ErrJobTypeRequired indicates a job was created without a type.
	ErrJobTypeRequired = errors.New("job type is required")

	// ErrFullScriptMissing indicates segment work was requested before the
	// project has a full script.
	ErrFullScriptMissing = errors.New("full script has not been generated")

	// ErrIndexOutOfRange indicates a segment index outside [0, total_segments).
	ErrIndexOutOfRange = errors.New("segment index out of range")

	// ErrSegmentVideoMissing indicates the segment has no uploaded video on disk.
	ErrSegmentVideoMissing = errors.New("segment video file is missing")

	// ErrLLMEmptyResponse indicates the model returned no usable text.
	ErrLLMEmptyResponse = errors.New("empty response from model")
)
