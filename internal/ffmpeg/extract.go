package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrFrameExtraction indicates both extraction strategies failed.
var ErrFrameExtraction = errors.New("frame extraction failed")

// ExtractLastFrame writes the last frame of video to out (JPEG) and returns
// the output path. Fast path seeks from the end of the file; when the
// container lacks the index for that, it probes the duration and seeks
// forward instead.
func (t *Toolkit) ExtractLastFrame(ctx context.Context, video, out string) (string, error) {
	if _, err := os.Stat(video); err != nil {
		return "", fmt.Errorf("input video: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("creating frame dir: %w", err)
	}
	_ = os.Remove(out)

	_, fastErr := t.run(ctx, t.ffmpeg,
		"-sseof", "-0.5",
		"-i", video,
		"-vframes", "1",
		"-y", out,
	)
	if fastErr == nil && fileNonEmpty(out) {
		return out, nil
	}

	probe, err := t.Probe(ctx, video)
	if err != nil {
		return "", fmt.Errorf("%w: sseof: %v; probe: %v", ErrFrameExtraction, fastErr, err)
	}
	seek := probe.FormatDuration() - 0.5
	if seek < 0 {
		seek = 0
	}

	_, slowErr := t.run(ctx, t.ffmpeg,
		"-ss", fmt.Sprintf("%.3f", seek),
		"-i", video,
		"-vframes", "1",
		"-y", out,
	)
	if slowErr == nil && fileNonEmpty(out) {
		return out, nil
	}
	return "", fmt.Errorf("%w: sseof: %v; seek: %v", ErrFrameExtraction, fastErr, slowErr)
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
