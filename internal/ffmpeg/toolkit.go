package ffmpeg

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/reelsmith/reelsmith/internal/config"
)

// ConcatMode selects the concatenation strategy.
type ConcatMode string

const (
	// ModeAuto tries copy, then ts, then reencode.
	ModeAuto ConcatMode = "auto"
	// ModeCopy remuxes through the concat demuxer without reencoding.
	ModeCopy ConcatMode = "copy"
	// ModeTS remuxes inputs to MPEG-TS and joins them; h264/hevc only.
	ModeTS ConcatMode = "ts"
	// ModeReencode builds a filter graph and reencodes everything.
	ModeReencode ConcatMode = "reencode"
)

// Toolkit provides the media operations the pipeline needs.
type Toolkit struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
	timeout time.Duration
	mode    ConcatMode
	logger  *slog.Logger
}

// New creates a Toolkit from configuration. Missing binaries are logged but
// do not fail construction; invocations will error at call time.
func New(cfg config.MediaConfig, log *slog.Logger) *Toolkit {
	if log == nil {
		log = slog.Default()
	}

	t := &Toolkit{
		runner:  NewExecRunner(),
		ffmpeg:  resolveBinary(cfg.FFmpegPath, "ffmpeg", log),
		ffprobe: resolveBinary(cfg.FFprobePath, "ffprobe", log),
		timeout: cfg.CommandTimeout,
		mode:    ConcatMode(cfg.ConcatMode),
		logger:  log,
	}
	if t.timeout <= 0 {
		t.timeout = 10 * time.Minute
	}
	if t.mode == "" {
		t.mode = ModeAuto
	}
	return t
}

// WithRunner replaces the subprocess runner. Used by tests.
func (t *Toolkit) WithRunner(r Runner) *Toolkit {
	t.runner = r
	return t
}

// WithMode overrides the concat mode.
func (t *Toolkit) WithMode(mode ConcatMode) *Toolkit {
	t.mode = mode
	return t
}

func resolveBinary(configured, name string, log *slog.Logger) string {
	if configured != "" {
		return configured
	}
	path, err := exec.LookPath(name)
	if err != nil {
		log.Warn("binary not found in PATH, media operations will fail",
			slog.String("binary", name))
		return name
	}
	return path
}

// run executes a command under the toolkit's wall-clock limit so a wedged
// subprocess cannot stall the worker.
func (t *Toolkit) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.runner.Run(ctx, name, args...)
}
