package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeResult contains the ffprobe output fields the pipeline consumes.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Duration string `json:"duration"`
}

// ProbeStream contains per-stream information. Numeric fields arrive as
// strings from ffprobe's JSON writer.
type ProbeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Duration   string `json:"duration,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Probe runs ffprobe on path and parses its JSON output.
func (t *Toolkit) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	out, err := t.run(ctx, t.ffprobe,
		"-v", "error",
		"-of", "json",
		"-show_entries",
		"format=duration:stream=index,codec_type,codec_name,duration,width,height,sample_rate,channels",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}
	return &result, nil
}

// parseSeconds parses an ffprobe duration string, returning 0 when absent
// or malformed.
func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FormatDuration returns the container duration in seconds, 0 when unknown.
func (r *ProbeResult) FormatDuration() float64 {
	return parseSeconds(r.Format.Duration)
}

// VideoStream returns the first video stream, or nil.
func (r *ProbeResult) VideoStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// AudioStream returns the first audio stream, or nil.
func (r *ProbeResult) AudioStream() *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

// VideoDuration returns the video stream duration in seconds, 0 when unknown.
func (r *ProbeResult) VideoDuration() float64 {
	if s := r.VideoStream(); s != nil {
		return parseSeconds(s.Duration)
	}
	return 0
}

// AudioDuration returns the audio stream duration in seconds, 0 when unknown.
func (r *ProbeResult) AudioDuration() float64 {
	if s := r.AudioStream(); s != nil {
		return parseSeconds(s.Duration)
	}
	return 0
}

// EffectiveDuration returns the first positive of video, format, and audio
// duration. This is the per-input contribution to a concat's expected total.
func (r *ProbeResult) EffectiveDuration() float64 {
	for _, d := range []float64{r.VideoDuration(), r.FormatDuration(), r.AudioDuration()} {
		if d > 0 {
			return d
		}
	}
	return 0
}
