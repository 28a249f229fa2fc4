package workflow

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/models"
)

func testProject(fullScript string, cursor int) *models.Project {
	return &models.Project{
		UserPrompt:           "test prompt",
		Pacing:               models.PacingNormal,
		TotalDurationSeconds: 30,
		SegmentDuration:      15,
		FullScript:           fullScript,
		CurrentSegmentIndex:  cursor,
	}
}

func seg(index int, status models.SegmentStatus, videoPath string) *models.Segment {
	return &models.Segment{Index: index, Status: status, VideoPath: videoPath}
}

func TestDeriveNextActionRuleOrder(t *testing.T) {
	cases := []struct {
		name     string
		project  *models.Project
		segments []*models.Segment
		want     models.NextAction
	}{
		{"no full script", testProject("  ", 0), nil, models.ActionGenerateFullScript},
		{"cursor past end without final", testProject("s", 2), nil, models.ActionAssemble},
		{"missing segment", testProject("s", 0), nil, models.ActionGenerateSegment},
		{"pending segment", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusPending, "")}, models.ActionGenerateSegment},
		{"script ready no video", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusScriptReady, "")}, models.ActionUploadVideo},
		{"script ready with video", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusScriptReady, "/v.mp4")}, models.ActionAnalyze},
		{"waiting video with video", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusWaitingVideo, "/v.mp4")}, models.ActionAnalyze},
		{"waiting video without video", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusWaitingVideo, "")}, models.ActionUploadVideo},
		{"analyzing", testProject("s", 1), []*models.Segment{seg(1, models.SegmentStatusAnalyzing, "/v.mp4")}, models.ActionWaitAnalyze},
		{"completed advances", testProject("s", 1), []*models.Segment{seg(1, models.SegmentStatusCompleted, "/v.mp4")}, models.ActionGenerateSegment},
		{"failed retries", testProject("s", 0), []*models.Segment{seg(0, models.SegmentStatusFailed, "")}, models.ActionRetry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveNextAction(tc.project, tc.segments))
		})
	}
}

func TestDeriveNextActionDone(t *testing.T) {
	p := testProject("s", 2)
	p.FinalVideoPath = "/final/output.mp4"
	assert.Equal(t, models.ActionDone, DeriveNextAction(p, nil))
}

func TestTotalSegmentsCeiling(t *testing.T) {
	p := &models.Project{TotalDurationSeconds: 31, SegmentDuration: 15}
	assert.Equal(t, 3, p.TotalSegments())
	p.TotalDurationSeconds = 30
	assert.Equal(t, 2, p.TotalSegments())
	p.TotalDurationSeconds = 1
	assert.Equal(t, 1, p.TotalSegments())
}

func TestSegmentTimeRangeClamps(t *testing.T) {
	p := &models.Project{TotalDurationSeconds: 20, SegmentDuration: 15}
	start, end := p.SegmentTimeRange(1)
	assert.Equal(t, 15, start)
	assert.Equal(t, 20, end)
}

func TestLatestFrameBefore(t *testing.T) {
	segments := []*models.Segment{
		{Index: 0, LastFramePath: "/f0.jpg"},
		{Index: 1, LastFramePath: ""},
		{Index: 2, LastFramePath: "/f2.jpg"},
	}
	assert.Equal(t, "/f2.jpg", LatestFrameBefore(segments, 3))
	assert.Equal(t, "/f0.jpg", LatestFrameBefore(segments, 2))
	assert.Empty(t, LatestFrameBefore(segments, 0))
}

func TestMergeSegmentsOverlayWins(t *testing.T) {
	base := []*models.Segment{seg(0, models.SegmentStatusPending, ""), seg(2, models.SegmentStatusPending, "")}
	overlay := []*models.Segment{seg(1, models.SegmentStatusScriptReady, ""), seg(2, models.SegmentStatusCompleted, "/v.mp4")}

	merged := MergeSegments(base, overlay)
	require.Len(t, merged, 3)
	assert.Equal(t, 0, merged[0].Index)
	assert.Equal(t, 1, merged[1].Index)
	assert.Equal(t, models.SegmentStatusCompleted, merged[2].Status)
}

func TestExtractJSONDirect(t *testing.T) {
	raw, err := json.Marshal(SegmentDraft{Script: "SEG_SCRIPT", VideoPrompt: "VIDEO_PROMPT"})
	require.NoError(t, err)

	draft := ExtractJSON(string(raw))
	assert.Equal(t, "SEG_SCRIPT", draft.Script)
	assert.Equal(t, "VIDEO_PROMPT", draft.VideoPrompt)
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"script\": \"s\", \"video_prompt\": \"p\"}\n```\nthanks"
	draft := ExtractJSON(raw)
	assert.Equal(t, "s", draft.Script)
	assert.Equal(t, "p", draft.VideoPrompt)
}

func TestExtractJSONEmbeddedObject(t *testing.T) {
	raw := "preamble {\"script\": \"s\", \"video_prompt\": \"p\", \"continuity\": \"c\"} trailing"
	draft := ExtractJSON(raw)
	assert.Equal(t, "s", draft.Script)
	assert.Equal(t, "c", draft.Continuity)
}

func TestExtractJSONFallback(t *testing.T) {
	raw := strings.Repeat("长", 250)
	draft := ExtractJSON(raw)
	assert.Equal(t, raw, draft.Script)
	assert.Len(t, []rune(draft.VideoPrompt), 200)
	assert.Empty(t, draft.Continuity)
}

func TestExportSegmentText(t *testing.T) {
	p := testProject("s", 0)
	s := &models.Segment{Index: 1, SegmentScript: "lines", VideoPrompt: "prompt"}
	out := ExportSegmentText(p, s)
	assert.Contains(t, out, "# 片段 1")
	assert.Contains(t, out, "15s - 30s")
	assert.Contains(t, out, "lines")
	assert.Contains(t, out, "prompt")
}
