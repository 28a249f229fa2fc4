package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeParsesOutput(t *testing.T) {
	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		assert.Equal(t, "ffprobe", name)
		return probeJSON("h264", "14.9", "15.0", "15.1"), nil
	})

	probe, err := tk.Probe(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 14.9, probe.VideoDuration(), 1e-9)
	assert.InDelta(t, 15.0, probe.FormatDuration(), 1e-9)
	assert.InDelta(t, 15.1, probe.AudioDuration(), 1e-9)
	assert.InDelta(t, 14.9, probe.EffectiveDuration(), 1e-9)
	assert.Equal(t, "h264", probe.VideoStream().CodecName)
}

func TestEffectiveDurationFallsBack(t *testing.T) {
	r := &ProbeResult{
		Format: ProbeFormat{Duration: ""},
		Streams: []ProbeStream{
			{CodecType: "video", CodecName: "h264"},
			{CodecType: "audio", CodecName: "aac", Duration: "12.5"},
		},
	}
	assert.InDelta(t, 12.5, r.EffectiveDuration(), 1e-9)

	empty := &ProbeResult{}
	assert.Zero(t, empty.EffectiveDuration())
}

func TestExtractLastFrameFastPath(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "segment_000.mp4")
	out := filepath.Join(dir, "frames", "frame_000.jpg")
	require.NoError(t, os.WriteFile(video, []byte("v"), 0o644))

	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		require.Equal(t, "ffmpeg", name)
		assert.Equal(t, "-sseof", args[0])
		assert.Equal(t, "-0.5", args[1])
		require.NoError(t, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o644))
		return nil, nil
	})

	got, err := tk.ExtractLastFrame(context.Background(), video, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.FileExists(t, out)
}

func TestExtractLastFrameFallbackSeeksFromDuration(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "segment_000.mp4")
	out := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(video, []byte("v"), 0o644))

	var seekArg string
	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		if name == "ffprobe" {
			return probeJSON("h264", "", "10.0", ""), nil
		}
		if args[0] == "-sseof" {
			return nil, errors.New("ffmpeg: could not seek from end")
		}
		require.Equal(t, "-ss", args[0])
		seekArg = args[1]
		require.NoError(t, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o644))
		return nil, nil
	})

	_, err := tk.ExtractLastFrame(context.Background(), video, out)
	require.NoError(t, err)
	assert.Equal(t, "9.500", seekArg)
}

func TestExtractLastFrameBothPathsFail(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "v.mp4")
	require.NoError(t, os.WriteFile(video, []byte("v"), 0o644))

	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		if name == "ffprobe" {
			return probeJSON("h264", "", "1.0", ""), nil
		}
		return nil, errors.New("boom")
	})

	_, err := tk.ExtractLastFrame(context.Background(), video, filepath.Join(dir, "f.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameExtraction)
}

func TestExtractLastFrameMissingInput(t *testing.T) {
	tk := testToolkit(t, func(string, []string) ([]byte, error) { return nil, nil })
	_, err := tk.ExtractLastFrame(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), "out.jpg")
	assert.Error(t, err)
}
