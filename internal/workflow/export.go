package workflow

import (
	"fmt"
	"time"

	"github.com/reelsmith/reelsmith/internal/models"
)

// ExportSegmentText renders the human-readable per-segment export written
// next to the project's artifacts. The headings match the files produced by
// earlier releases so downstream tooling keeps working.
func ExportSegmentText(project *models.Project, segment *models.Segment) string {
	start, end := project.SegmentTimeRange(segment.Index)
	return fmt.Sprintf(
		"# 片段 %d\n\n"+
			"## 时间范围\n%ds - %ds\n\n"+
			"## 剧本（给人看）\n%s\n\n"+
			"## 视频Prompt（给视频生成模型/人工参考）\n%s\n\n"+
			"---\n生成时间: %sZ\n",
		segment.Index, start, end,
		segment.SegmentScript, segment.VideoPrompt,
		time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
	)
}
