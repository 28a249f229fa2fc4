package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Validation tolerances for concat output. The duration tolerance scales with
// the expected total but never drops below one second.
const (
	durationTolFloor  = 1.0
	durationTolFactor = 0.03
	avDesyncTol       = 0.5
)

// Concatenate joins inputs into out using the configured strategy. In auto
// mode it tries copy, then ts, then reencode, validating the result after
// each attempt; the final error lists every failed attempt.
func (t *Toolkit) Concatenate(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return errors.New("no input videos to concatenate")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	probes := make([]*ProbeResult, len(inputs))
	var expected float64
	for i, in := range inputs {
		probe, err := t.Probe(ctx, in)
		if err != nil {
			return err
		}
		probes[i] = probe
		expected += probe.EffectiveDuration()
	}

	var attempts []string
	try := func(name string, fn func() (float64, error)) bool {
		// No partial outputs carry over between attempts.
		_ = os.Remove(out)
		exp, err := fn()
		if err != nil {
			attempts = append(attempts, name+": "+err.Error())
			return false
		}
		if reason := t.validateConcat(ctx, out, exp); reason != "" {
			attempts = append(attempts, name+": "+reason)
			return false
		}
		t.logger.Info("concatenation succeeded",
			slog.String("strategy", name),
			slog.Int("inputs", len(inputs)),
		)
		return true
	}

	tryCopy := func() bool {
		return try("copy_concat", func() (float64, error) {
			return expected, t.copyConcat(ctx, inputs, out)
		})
	}
	tryTS := func() bool {
		return try("ts_concat", func() (float64, error) {
			return expected, t.tsConcat(ctx, inputs, probes, out)
		})
	}
	tryReencode := func() bool {
		return try("reencode_concat", func() (float64, error) {
			return t.reencodeConcat(ctx, inputs, probes, out)
		})
	}

	switch t.mode {
	case ModeCopy:
		if tryCopy() {
			return nil
		}
	case ModeTS:
		if tryTS() {
			return nil
		}
	case ModeReencode:
		if tryReencode() {
			return nil
		}
	default:
		if tryCopy() || tryTS() || tryReencode() {
			return nil
		}
	}
	_ = os.Remove(out)
	return fmt.Errorf("concatenation failed: %s", strings.Join(attempts, "; "))
}

// validateConcat probes the produced file and returns a short reason string
// when it is unusable, or "" when it passes.
func (t *Toolkit) validateConcat(ctx context.Context, out string, expected float64) string {
	info, err := os.Stat(out)
	if err != nil {
		return "missing_output"
	}
	if info.Size() == 0 {
		return "empty_output"
	}

	probe, err := t.Probe(ctx, out)
	if err != nil {
		return "probe_failed: " + err.Error()
	}

	videoDur := probe.VideoDuration()
	audioDur := probe.AudioDuration()
	primary := videoDur
	if primary <= 0 {
		primary = probe.FormatDuration()
	}
	if primary <= 0 {
		return "invalid_duration"
	}

	tol := math.Max(durationTolFloor, durationTolFactor*expected)
	if math.Abs(primary-expected) > tol {
		return fmt.Sprintf("duration_mismatch out=%.2f expected=%.2f tol=%.2f", primary, expected, tol)
	}
	if videoDur > 0 && audioDur > 0 && math.Abs(videoDur-audioDur) > avDesyncTol {
		return fmt.Sprintf("av_desync v=%.2f a=%.2f", videoDur, audioDur)
	}
	return ""
}

// copyConcat joins inputs through the concat demuxer without reencoding.
func (t *Toolkit) copyConcat(ctx context.Context, inputs []string, out string) error {
	listPath := out + ".list"
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, in := range inputs {
		escaped := strings.ReplaceAll(in, "'", `\'`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer os.Remove(listPath)

	_, err := t.run(ctx, t.ffmpeg,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", out,
	)
	return err
}

// tsConcat remuxes each input to MPEG-TS and joins them with the concat
// protocol. Only h264 and hevc inputs are eligible.
func (t *Toolkit) tsConcat(ctx context.Context, inputs []string, probes []*ProbeResult, out string) error {
	bsfs := make([]string, len(inputs))
	for i, probe := range probes {
		stream := probe.VideoStream()
		if stream == nil {
			return fmt.Errorf("input %d has no video stream", i)
		}
		switch stream.CodecName {
		case "h264":
			bsfs[i] = "h264_mp4toannexb"
		case "hevc":
			bsfs[i] = "hevc_mp4toannexb"
		default:
			return fmt.Errorf("unsupported codec %q for ts remux", stream.CodecName)
		}
	}

	segments := make([]string, len(inputs))
	defer func() {
		for _, seg := range segments {
			if seg != "" {
				_ = os.Remove(seg)
			}
		}
	}()
	for i, in := range inputs {
		seg := fmt.Sprintf("%s.%d.ts", out, i)
		_, err := t.run(ctx, t.ffmpeg,
			"-i", in,
			"-c", "copy",
			"-bsf:v", bsfs[i],
			"-f", "mpegts",
			"-y", seg,
		)
		if err != nil {
			return err
		}
		segments[i] = seg
	}

	_, err := t.run(ctx, t.ffmpeg,
		"-i", "concat:"+strings.Join(segments, "|"),
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"-y", out,
	)
	return err
}

// reencodeConcat builds a trim/concat filter graph and reencodes everything.
// Inputs without audio get silence synthesized so the concat filter sees a
// uniform stream layout. Returns the expected duration of the result, which
// is the sum of the trim durations actually applied.
func (t *Toolkit) reencodeConcat(ctx context.Context, inputs []string, probes []*ProbeResult, out string) (float64, error) {
	durations := make([]float64, len(inputs))
	var expected float64
	for i, probe := range probes {
		durations[i] = minPositive(probe.VideoDuration(), probe.FormatDuration(), probe.AudioDuration())
		expected += durations[i]
	}

	hasAudio := false
	sampleRate := "44100"
	layout := "stereo"
	for _, probe := range probes {
		if s := probe.AudioStream(); s != nil {
			hasAudio = true
			if s.SampleRate != "" {
				sampleRate = s.SampleRate
			}
			if s.Channels == 1 {
				layout = "mono"
			}
			break
		}
	}

	var filter strings.Builder
	args := make([]string, 0, 2*len(inputs)+16)
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	for i := range inputs {
		if durations[i] <= 0 {
			return 0, fmt.Errorf("input %d has unknown duration", i)
		}
		fmt.Fprintf(&filter, "[%d:v]trim=duration=%.3f,setpts=PTS-STARTPTS[v%d];", i, durations[i], i)
		if !hasAudio {
			continue
		}
		if probes[i].AudioStream() != nil {
			fmt.Fprintf(&filter, "[%d:a]atrim=duration=%.3f,asetpts=PTS-STARTPTS[a%d];", i, durations[i], i)
		} else {
			fmt.Fprintf(&filter, "anullsrc=channel_layout=%s:sample_rate=%s,atrim=duration=%.3f,asetpts=PTS-STARTPTS[a%d];",
				layout, sampleRate, durations[i], i)
		}
	}

	for i := range inputs {
		fmt.Fprintf(&filter, "[v%d]", i)
		if hasAudio {
			fmt.Fprintf(&filter, "[a%d]", i)
		}
	}
	audioFlag := 0
	if hasAudio {
		audioFlag = 1
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=%d[outv]", len(inputs), audioFlag)
	if hasAudio {
		filter.WriteString("[outa]")
	}

	args = append(args, "-filter_complex", filter.String(), "-map", "[outv]")
	if hasAudio {
		args = append(args, "-map", "[outa]", "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-y", out,
	)

	if _, err := t.run(ctx, t.ffmpeg, args...); err != nil {
		return 0, err
	}
	return expected, nil
}

// minPositive returns the smallest strictly positive value, or 0.
func minPositive(values ...float64) float64 {
	best := 0.0
	for _, v := range values {
		if v > 0 && (best == 0 || v < best) {
			best = v
		}
	}
	return best
}
