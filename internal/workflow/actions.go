// Package workflow holds the pure project/segment state machine: next-action
// derivation, cascading invalidation helpers, and the tolerant parsing of
// model output into segment drafts.
package workflow

import (
	"sort"
	"strings"

	"github.com/reelsmith/reelsmith/internal/models"
)

// DeriveNextAction returns the pipeline step a client should take next.
// Pure over the project row and its segments.
func DeriveNextAction(project *models.Project, segments []*models.Segment) models.NextAction {
	if strings.TrimSpace(project.FullScript) == "" {
		return models.ActionGenerateFullScript
	}

	expected := project.TotalSegments()
	idx := project.CurrentSegmentIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= expected {
		if project.FinalVideoPath == "" {
			return models.ActionAssemble
		}
		return models.ActionDone
	}

	var current *models.Segment
	for _, s := range segments {
		if s.Index == idx {
			current = s
			break
		}
	}
	if current == nil || current.Status == models.SegmentStatusPending {
		return models.ActionGenerateSegment
	}
	switch current.Status {
	case models.SegmentStatusScriptReady:
		if current.VideoPath == "" {
			return models.ActionUploadVideo
		}
		return models.ActionAnalyze
	case models.SegmentStatusWaitingVideo:
		if current.VideoPath != "" {
			return models.ActionAnalyze
		}
		return models.ActionUploadVideo
	case models.SegmentStatusAnalyzing:
		return models.ActionWaitAnalyze
	case models.SegmentStatusCompleted:
		return models.ActionGenerateSegment
	case models.SegmentStatusFailed:
		return models.ActionRetry
	}
	return models.ActionUnknown
}

// LatestFrameBefore returns the last_frame_path of the highest-index segment
// below limit that has one, or "". Used to reseed the project frame when the
// cursor moves backwards.
func LatestFrameBefore(segments []*models.Segment, limit int) string {
	best := ""
	bestIdx := -1
	for _, s := range segments {
		if s.Index < limit && s.Index > bestIdx && s.LastFramePath != "" {
			best = s.LastFramePath
			bestIdx = s.Index
		}
	}
	return best
}

// MergeSegments merges two segment lists by index, sorted ascending. Entries
// from overlay win on collisions.
func MergeSegments(base, overlay []*models.Segment) []*models.Segment {
	byIndex := make(map[int]*models.Segment, len(base)+len(overlay))
	for _, s := range base {
		byIndex[s.Index] = s
	}
	for _, s := range overlay {
		byIndex[s.Index] = s
	}

	merged := make([]*models.Segment, 0, len(byIndex))
	for _, s := range byIndex {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	return merged
}

// SyntheticSegment returns the placeholder row reported for indices that have
// no database entry yet.
func SyntheticSegment(projectID models.ULID, index int) *models.Segment {
	return &models.Segment{
		ProjectID: projectID,
		Index:     index,
		Status:    models.SegmentStatusPending,
	}
}
