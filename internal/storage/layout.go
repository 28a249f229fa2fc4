// Package storage defines the on-disk layout of project artifacts and
// provides atomic text writes. The database stays authoritative; files here
// are derivable artifacts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// videoExtWhitelist is the set of accepted upload extensions. Anything else
// is rejected at the HTTP layer; unknown extensions default to .mp4 here.
var videoExtWhitelist = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true,
	".mkv": true, ".webm": true, ".avi": true,
}

// AllowedVideoExt reports whether ext (with leading dot, any case) is an
// accepted upload extension.
func AllowedVideoExt(ext string) bool {
	return videoExtWhitelist[strings.ToLower(ext)]
}

// Layout resolves canonical paths for one project's directory tree:
//
//	<root>/<project_id>/
//	    full_script.txt
//	    segments/segment_<NNN>.txt
//	    input_videos/segment_<NNN>.<ext>
//	    frames/frame_<NNN>.jpg
//	    final/output.mp4
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at projectsRoot.
func NewLayout(projectsRoot string) *Layout {
	return &Layout{root: projectsRoot}
}

// Root returns the projects root directory.
func (l *Layout) Root() string {
	return l.root
}

// ProjectDir returns the root directory of one project.
func (l *Layout) ProjectDir(projectID string) string {
	return filepath.Join(l.root, projectID)
}

// EnsureProjectDirs creates the project's fixed subdirectories.
func (l *Layout) EnsureProjectDirs(projectID string) error {
	for _, sub := range []string{"segments", "input_videos", "frames", "final"} {
		dir := filepath.Join(l.ProjectDir(projectID), sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating project dir %s: %w", dir, err)
		}
	}
	return nil
}

// FullScriptPath returns the path of the global screenplay text file.
func (l *Layout) FullScriptPath(projectID string) string {
	return filepath.Join(l.ProjectDir(projectID), "full_script.txt")
}

// SegmentTextPath returns the path of segment i's text export.
func (l *Layout) SegmentTextPath(projectID string, i int) string {
	return filepath.Join(l.ProjectDir(projectID), "segments", fmt.Sprintf("segment_%03d.txt", i))
}

// InputVideoPath returns the destination of segment i's uploaded video.
// The extension is lowercased; values outside the whitelist fall back to .mp4.
func (l *Layout) InputVideoPath(projectID string, i int, ext string) string {
	ext = strings.ToLower(ext)
	if !videoExtWhitelist[ext] {
		ext = ".mp4"
	}
	return filepath.Join(l.ProjectDir(projectID), "input_videos", fmt.Sprintf("segment_%03d%s", i, ext))
}

// FramePath returns the path of segment i's extracted last frame.
func (l *Layout) FramePath(projectID string, i int) string {
	return filepath.Join(l.ProjectDir(projectID), "frames", fmt.Sprintf("frame_%03d.jpg", i))
}

// FinalVideoPath returns the path of the assembled output video.
func (l *Layout) FinalVideoPath(projectID string) string {
	return filepath.Join(l.ProjectDir(projectID), "final", "output.mp4")
}

// WriteText atomically writes text to path: temp file in the same directory,
// fsync, rename over the target.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
